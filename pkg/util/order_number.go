package util

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
)

// OrderNumberPattern matches numbers such as CP-2026-482913
var OrderNumberPattern = regexp.MustCompile(`^[A-Z]+-\d{4}-\d{6}$`)

// GenerateOrderNumber builds PREFIX-YEAR-NNNNNN where NNNNNN is the last six
// digits of the millisecond timestamp.
func GenerateOrderNumber(prefix string, now time.Time) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	return fmt.Sprintf("%s-%04d-%06d", prefix, now.Year(), now.UnixMilli()%1_000_000)
}

// RenumberOrder keeps the prefix and year of an order number and draws a new
// random suffix. Used after a suffix collision.
func RenumberOrder(number string, now time.Time) string {
	prefix, _, ok := strings.Cut(number, "-")
	if !ok || prefix == "" {
		prefix = "CP"
	}
	return fmt.Sprintf("%s-%04d-%06d", strings.ToUpper(prefix), now.Year(), rand.IntN(1_000_000))
}
