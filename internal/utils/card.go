package utils

import (
	"fmt"
	"strings"
	"time"
)

// CardNumberLength is the number of digits in an issued card number
const CardNumberLength = 16

// NormalizeCardNumber strips spaces and dashes and checks that exactly 16 digits remain
func NormalizeCardNumber(number string) (string, error) {
	clean := strings.ReplaceAll(number, " ", "")
	clean = strings.ReplaceAll(clean, "-", "")
	if len(clean) != CardNumberLength {
		return "", fmt.Errorf("card number must contain exactly %d digits", CardNumberLength)
	}
	for i := 0; i < len(clean); i++ {
		if clean[i] < '0' || clean[i] > '9' {
			return "", fmt.Errorf("card number must contain exactly %d digits", CardNumberLength)
		}
	}
	return clean, nil
}

// Last4 returns the trailing four digits of a normalized card number
func Last4(number string) string {
	if len(number) < 4 {
		return number
	}
	return number[len(number)-4:]
}

// MaskLast4 renders a card number for display from its last four digits
func MaskLast4(last4 string) string {
	return "**** **** **** " + last4
}

// EndOfMonth returns the last day of the given month at UTC midnight
func EndOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
}

// Today truncates t to its calendar day at UTC midnight
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RenewedExpiry returns the end of the month that lies years after today
func RenewedExpiry(today time.Time, years int) time.Time {
	y, m, _ := today.Date()
	return EndOfMonth(y+years, m)
}
