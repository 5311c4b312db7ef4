package utils

import (
	"math"
	"strconv"
	"strings"
)

// Int64ToStr converts an int64 to its string representation.
func Int64ToStr(num int64) string {
	return strconv.FormatInt(num, 10)
}

// StrToInt64 converts a string to an int64.
// Returns 0 and an error if the conversion fails.
func StrToInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// FormatQuantity renders a stock quantity without a trailing ".0" for whole numbers,
// so messages read "18 bottle" rather than "18.000000 bottle".
func FormatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// RoundQuantity rounds q to the three decimals a NUMERIC(14,3) column keeps.
func RoundQuantity(q float64) float64 {
	return math.Round(q*1000) / 1000
}
