// Package payment holds the card checks shared by the checkout form and the
// charge endpoint, the simulated charge flow and the interpretation of its
// responses.
package payment

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type Field string

const (
	FieldCardholderName Field = "cardholderName"
	FieldCardNumber     Field = "cardNumber"
	FieldExpiry         Field = "expiry"
	FieldCVV            Field = "cvv"
)

type CardForm struct {
	CardholderName string `json:"cardholderName"`
	CardNumber     string `json:"cardNumber"`
	Expiry         string `json:"expiry"`
	CVV            string `json:"cvv"`
}

// SanitizedCard is a form that passed validation, normalised for submission.
type SanitizedCard struct {
	CardholderName string     `json:"cardholderName"`
	CardNumber     string     `json:"cardNumber"`
	ExpiryMonth    time.Month `json:"expiryMonth"`
	ExpiryYear     int        `json:"expiryYear"`
	CVV            string     `json:"cvv"`
}

type CardValidation struct {
	IsValid bool             `json:"isValid"`
	Errors  map[Field]string `json:"errors,omitempty"`
	Card    *SanitizedCard   `json:"-"`
}

// ValidateCardForm checks every field and reports all failures at once.
func ValidateCardForm(form CardForm, locale Locale, now time.Time) CardValidation {
	errs := make(map[Field]string)

	name := strings.TrimSpace(form.CardholderName)
	if name == "" {
		errs[FieldCardholderName] = message(locale, msgNameRequired)
	}

	number := StripCardNumber(form.CardNumber)
	if !LuhnValid(number) {
		errs[FieldCardNumber] = message(locale, msgCardNumberInvalid)
	}

	month, year, err := ParseExpiry(form.Expiry)
	switch {
	case err != nil:
		errs[FieldExpiry] = message(locale, msgExpiryInvalid)
	case Expired(month, year, now):
		errs[FieldExpiry] = message(locale, msgCardExpired)
	}

	cvv := strings.TrimSpace(form.CVV)
	if !CVVValid(cvv) {
		errs[FieldCVV] = message(locale, msgCVVInvalid)
	}

	if len(errs) > 0 {
		return CardValidation{IsValid: false, Errors: errs}
	}
	return CardValidation{
		IsValid: true,
		Card: &SanitizedCard{
			CardholderName: name,
			CardNumber:     number,
			ExpiryMonth:    month,
			ExpiryYear:     year,
			CVV:            cvv,
		},
	}
}

// StripCardNumber removes all whitespace from a card number.
func StripCardNumber(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// LuhnValid reports whether number is 12 to 19 digits with a valid Luhn
// checksum. Whitespace must already be stripped.
func LuhnValid(number string) bool {
	if len(number) < 12 || len(number) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

var errExpiryFormat = errors.New("expiry must be MM/YY or MM/YYYY")

// ParseExpiry accepts MM/YY and MM/YYYY. Two-digit years are in the 2000s.
func ParseExpiry(s string) (time.Month, int, error) {
	mm, yy, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || len(mm) != 2 || (len(yy) != 2 && len(yy) != 4) {
		return 0, 0, errExpiryFormat
	}
	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, errExpiryFormat
	}
	if !allDigits(mm) || !allDigits(yy) {
		return 0, 0, errExpiryFormat
	}
	year, err := strconv.Atoi(yy)
	if err != nil {
		return 0, 0, errExpiryFormat
	}
	if len(yy) == 2 {
		year += 2000
	}
	return time.Month(month), year, nil
}

// Expired reports whether the card stopped being valid before now's month.
// A card is usable through the last day of its expiry month.
func Expired(month time.Month, year int, now time.Time) bool {
	if year != now.Year() {
		return year < now.Year()
	}
	return month < now.Month()
}

func CVVValid(cvv string) bool {
	return (len(cvv) == 3 || len(cvv) == 4) && allDigits(cvv)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
