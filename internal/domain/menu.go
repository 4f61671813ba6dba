package domain

import "github.com/shopspring/decimal"

type MenuItem struct {
	ID    int64           `json:"item_id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"img"`
}

type Topping struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}
