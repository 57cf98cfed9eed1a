package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NextInvoiceNumber computes the next number in a user's sequence.
//
// Only numbers shaped "{prefix}-{n}{suffix}" take part. The numeric part of
// each is parsed after stripping prefix and suffix; remainders that do not
// parse or are not positive are ignored. The result is max+1, or start when
// nothing matched, zero-padded to four digits.
func NextInvoiceNumber(existing []string, prefix, suffix string, start int) string {
	if start < 1 {
		start = 1
	}
	head := prefix + "-"

	maxSeen := 0
	for _, num := range existing {
		if !strings.HasPrefix(num, head) {
			continue
		}
		rest := strings.TrimPrefix(num, head)
		if suffix != "" {
			if !strings.HasSuffix(rest, suffix) {
				continue
			}
			rest = strings.TrimSuffix(rest, suffix)
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			continue
		}
		if n > maxSeen {
			maxSeen = n
		}
	}

	next := start
	if maxSeen > 0 {
		next = maxSeen + 1
	}
	return FormatInvoiceNumber(prefix, suffix, next)
}

// FormatInvoiceNumber renders a sequence value with the user's prefix and suffix.
func FormatInvoiceNumber(prefix, suffix string, n int) string {
	return fmt.Sprintf("%s-%04d%s", prefix, n, suffix)
}
