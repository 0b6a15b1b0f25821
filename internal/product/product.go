package product

import "time"

// Source identifies the site a listing was scraped from
type Source string

const (
	SourceArbuz        Source = "Arbuz"
	SourceCleverMarket Source = "CleverMarket"
	SourceKaspi        Source = "Kaspi"
)

// AllSources lists every source a scrape can produce
var AllSources = []Source{SourceArbuz, SourceCleverMarket, SourceKaspi}

// UndefinedLabel replaces a missing category or subcategory
const UndefinedLabel = "Undefined"

// Product is a listing snapshot from one source at one point in time.
// Price keeps the site's own formatting; use ParsePrice for ordering.
type Product struct {
	ID          int64     `json:"id"`
	Code        *string   `json:"code,omitempty"`
	Name        string    `json:"name"`
	Price       string    `json:"price"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory"`
	Timestamp   time.Time `json:"timestamp"`
	Source      Source    `json:"source"`
	Image       *string   `json:"image,omitempty"`
	Link        string    `json:"link"`
}

// CodeOrEmpty returns the source-local code or "" when extraction failed
func (p Product) CodeOrEmpty() string {
	if p.Code == nil {
		return ""
	}
	return *p.Code
}

// ImageOrEmpty returns the image URL or ""
func (p Product) ImageOrEmpty() string {
	if p.Image == nil {
		return ""
	}
	return *p.Image
}

// RawListing is what a source adapter extracts from one product card
type RawListing struct {
	Code      *string
	Name      string
	PriceText string
	Image     *string
	Link      string
}

// StringPtr returns nil for an empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
