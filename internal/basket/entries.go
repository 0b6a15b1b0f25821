package basket

import (
	"strconv"
	"strings"
)

// Entry is one "id" or "id-qty" token typed by a user
type Entry struct {
	ProductID int64
	// Quantity is nil when the token carried no quantity
	Quantity *int
}

// ParseEntries parses whitespace separated "379-2 380" style input.
// Only the first two dash-separated parts count, so "7-3-1" is id 7 qty 3.
// Malformed tokens and non-positive numbers are skipped.
func ParseEntries(text string) []Entry {
	var entries []Entry
	for _, token := range strings.Fields(text) {
		parts := strings.Split(token, "-")

		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		entry := Entry{ProductID: id}
		if len(parts) > 1 {
			qty, err := strconv.Atoi(parts[1])
			if err != nil || qty <= 0 {
				continue
			}
			entry.Quantity = &qty
		}
		entries = append(entries, entry)
	}
	return entries
}
