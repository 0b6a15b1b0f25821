package product

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Unparsable is the ordering key of a price that could not be parsed.
// Entries with unparsable prices sort last and are excluded from averages.
var Unparsable = math.Inf(1)

// ParsePrice keeps only ASCII digits and '.' from text and parses the
// remainder. Any failure yields Unparsable.
func ParsePrice(text string) float64 {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || math.IsNaN(v) {
		return Unparsable
	}
	return v
}

// IsParsable reports whether text yields a finite price
func IsParsable(text string) bool {
	return !math.IsInf(ParsePrice(text), 1)
}

// SortByPrice orders products by parsed price ascending. Ties (including all
// unparsable prices) are broken by timestamp, newest first.
func SortByPrice(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return LessByPrice(products[i], products[j])
	})
}

// LessByPrice orders by parsed price, newest first on ties
func LessByPrice(a, b Product) bool {
	pa, pb := ParsePrice(a.Price), ParsePrice(b.Price)
	if pa != pb {
		return pa < pb
	}
	return a.Timestamp.After(b.Timestamp)
}

// SortPriceStrings orders raw price strings the same way SortByPrice does
func SortPriceStrings(prices []string) {
	sort.SliceStable(prices, func(i, j int) bool {
		return ParsePrice(prices[i]) < ParsePrice(prices[j])
	})
}

// AveragePrice averages the parsable prices. ok is false when none parse.
func AveragePrice(products []Product) (avg float64, ok bool) {
	var sum float64
	var n int
	for _, p := range products {
		v := ParsePrice(p.Price)
		if math.IsInf(v, 1) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Savings returns average-minus-price when p is cheaper than avg
func Savings(p Product, avg float64) (float64, bool) {
	v := ParsePrice(p.Price)
	if math.IsInf(v, 1) || v >= avg {
		return 0, false
	}
	return avg - v, true
}
