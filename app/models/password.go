package models

import "unicode"

// Password requirement identifiers returned to clients.
const (
	PasswordMinLength = "min_length"
	PasswordLowercase = "lowercase"
	PasswordUppercase = "uppercase"
	PasswordDigit     = "digit"
	PasswordSpecial   = "special"
)

const minPasswordLength = 8

// UnmetPasswordRequirements lists every requirement the password fails, in a
// stable order. An empty result means the password is acceptable.
func UnmetPasswordRequirements(password string) []string {
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	unmet := make([]string, 0, 5)
	if len([]rune(password)) < minPasswordLength {
		unmet = append(unmet, PasswordMinLength)
	}
	if !lower {
		unmet = append(unmet, PasswordLowercase)
	}
	if !upper {
		unmet = append(unmet, PasswordUppercase)
	}
	if !digit {
		unmet = append(unmet, PasswordDigit)
	}
	if !special {
		unmet = append(unmet, PasswordSpecial)
	}
	return unmet
}
