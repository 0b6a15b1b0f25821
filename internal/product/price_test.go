package product

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"950", 950},
		{"1 200 ₸", 1200},
		{"2 499,00 ₸", 249900},
		{"12.5", 12.5},
		{"abc", math.Inf(1)},
		{"", math.Inf(1)},
		{"1.2.3", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePrice(tt.in))
		})
	}
}

func TestSortPriceStringsTotalOrder(t *testing.T) {
	prices := []string{"1 200 ₸", "abc", "950"}
	SortPriceStrings(prices)
	assert.Equal(t, []string{"950", "1 200 ₸", "abc"}, prices)

	mixed := []string{"n/a", "10", "—", "5"}
	SortPriceStrings(mixed)
	assert.Equal(t, "5", mixed[0])
	assert.Equal(t, "10", mixed[1])
	assert.False(t, IsParsable(mixed[2]))
	assert.False(t, IsParsable(mixed[3]))
}

func TestSortByPriceTieBreaksByNewest(t *testing.T) {
	now := time.Now()
	products := []Product{
		{Name: "old", Price: "100", Timestamp: now.Add(-time.Hour)},
		{Name: "broken", Price: "—"},
		{Name: "new", Price: "100 ₸", Timestamp: now},
		{Name: "cheap", Price: "50"},
	}

	SortByPrice(products)

	var names []string
	for _, p := range products {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"cheap", "new", "old", "broken"}, names)
}

func TestAveragePriceSkipsUnparsable(t *testing.T) {
	products := []Product{{Price: "100"}, {Price: "300 ₸"}, {Price: "договорная"}}

	avg, ok := AveragePrice(products)
	assert.True(t, ok)
	assert.Equal(t, 200.0, avg)

	_, ok = AveragePrice([]Product{{Price: "?"}})
	assert.False(t, ok)
}

func TestSavings(t *testing.T) {
	saved, ok := Savings(Product{Price: "150"}, 200)
	assert.True(t, ok)
	assert.Equal(t, 50.0, saved)

	_, ok = Savings(Product{Price: "250"}, 200)
	assert.False(t, ok)

	_, ok = Savings(Product{Price: "n/a"}, 200)
	assert.False(t, ok)
}
