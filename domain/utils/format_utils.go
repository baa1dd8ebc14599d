package utils

import (
	"fmt"
)

// FormatMinorUnits renders an amount of minor units with two decimals (12345 -> "123.45")
func FormatMinorUnits(value int64) string {
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}
	return fmt.Sprintf("%s%d.%02d", sign, value/100, value%100)
}

// FormatSignedMinorUnits renders an amount with an explicit sign
func FormatSignedMinorUnits(value int64) string {
	if value > 0 {
		return "+" + FormatMinorUnits(value)
	}
	return FormatMinorUnits(value)
}
