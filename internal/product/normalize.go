package product

import "strings"

// Normalize assembles a Product from adapter output. ID and Timestamp are
// left zero; the store assigns both.
func Normalize(raw RawListing, category, subcategory string, source Source) Product {
	return Product{
		Code:        trimPtr(raw.Code),
		Name:        strings.TrimSpace(raw.Name),
		Price:       strings.TrimSpace(raw.PriceText),
		Category:    orUndefined(category),
		Subcategory: orUndefined(subcategory),
		Source:      source,
		Image:       trimPtr(raw.Image),
		Link:        strings.TrimSpace(raw.Link),
	}
}

func orUndefined(label string) string {
	if label = strings.TrimSpace(label); label == "" {
		return UndefinedLabel
	}
	return label
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return StringPtr(strings.TrimSpace(*s))
}
