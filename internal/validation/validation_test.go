package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginForm_Validate(t *testing.T) {
	tests := []struct {
		name   string
		form   LoginForm
		fields []string
	}{
		{"valid", LoginForm{Email: "ann@cafe.io", Password: "secret"}, nil},
		{"bad email", LoginForm{Email: "ann@", Password: "secret"}, []string{"email"}},
		{"short password", LoginForm{Email: "ann@cafe.io", Password: "12345"}, []string{"password"}},
		{"both", LoginForm{}, []string{"email", "password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var errs Errors
			require.True(t, errors.As(err, &errs))
			assert.Len(t, errs, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, errs, f)
			}
		})
	}
}

func TestRegisterForm_Validate(t *testing.T) {
	valid := RegisterForm{Name: "Ann", Email: "ann@cafe.io", Password: "secret1", ConfirmPassword: "secret1"}
	require.NoError(t, valid.Validate())

	mismatch := valid
	mismatch.ConfirmPassword = "secret2"
	var errs Errors
	require.True(t, errors.As(mismatch.Validate(), &errs))
	assert.Equal(t, "Passwords do not match", errs["confirmPassword"])

	blank := RegisterForm{Name: "  ", Email: "nope", Password: "1", ConfirmPassword: "1"}
	require.True(t, errors.As(blank.Validate(), &errs))
	assert.Len(t, errs, 4)
	assert.Contains(t, errs["confirmPassword"], "at least 6")
}

func TestErrors_ErrorIsSorted(t *testing.T) {
	err := Errors{"password": "too short", "email": "invalid"}
	assert.Equal(t, "email: invalid; password: too short", err.Error())
}

func TestParseOrderID(t *testing.T) {
	id, err := ParseOrderID(" 101 ")
	require.NoError(t, err)
	assert.Equal(t, int64(101), id)

	for _, bad := range []string{"", "abc", "0", "-3", "1.5"} {
		_, err := ParseOrderID(bad)
		assert.ErrorIs(t, err, ErrInvalidOrderID, bad)
	}
}

func TestParseQuantity(t *testing.T) {
	n, err := ParseQuantity("")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = ParseQuantity("3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = ParseQuantity("0")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = ParseQuantity("x")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestParseToppingIDs(t *testing.T) {
	assert.Equal(t, []int64{3, 2}, ParseToppingIDs([]string{"3", "x", "2", "-1", ""}))
	assert.Empty(t, ParseToppingIDs(nil))
}
