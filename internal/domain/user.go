package domain

type Role string

const (
	RoleUser    Role = "USER"
	RoleBarista Role = "BARISTA"
)

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
