package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	raw := RawListing{
		Code:      StringPtr(" 1001 "),
		Name:      "  Молоко 3,2% 1 л ",
		PriceText: " 650 ₸",
		Image:     StringPtr(""),
		Link:      "https://arbuz.kz/ru/almaty/catalog/item/1001",
	}

	p := Normalize(raw, "Молоко, сыр и яйца", "Молоко", SourceArbuz)

	assert.Equal(t, "1001", p.CodeOrEmpty())
	assert.Equal(t, "Молоко 3,2% 1 л", p.Name)
	assert.Equal(t, "650 ₸", p.Price)
	assert.Equal(t, "Молоко, сыр и яйца", p.Category)
	assert.Equal(t, "Молоко", p.Subcategory)
	assert.Equal(t, SourceArbuz, p.Source)
	assert.Nil(t, p.Image)
	assert.Zero(t, p.ID)
	assert.True(t, p.Timestamp.IsZero())
}

func TestNormalizeMissingLabels(t *testing.T) {
	p := Normalize(RawListing{Name: "Чай", PriceText: "500"}, " ", "", SourceKaspi)

	assert.Equal(t, UndefinedLabel, p.Category)
	assert.Equal(t, UndefinedLabel, p.Subcategory)
	assert.Nil(t, p.Code)
}
