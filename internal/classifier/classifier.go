package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"sjsage522/pricebot/internal/product"
)

// Classifier maps a free-text product title to a subcategory label
type Classifier struct {
	tagger Tagger
}

func New() *Classifier { return &Classifier{tagger: RuleTagger{}} }

// NewWithTagger builds a classifier around a different tagger
func NewWithTagger(t Tagger) *Classifier { return &Classifier{tagger: t} }

// Classify returns the most frequent common-noun lemma of title, capitalized.
// Ties go to the noun seen first. Without nouns the first word of the title
// is used; an empty title yields product.UndefinedLabel.
func (c *Classifier) Classify(title string) string {
	title = strings.TrimSpace(norm.NFC.String(title))
	if title == "" {
		return product.UndefinedLabel
	}

	counts := map[string]int{}
	var order []string
	for _, tok := range c.tagger.Tag(title) {
		if tok.Tag != TagNoun || tok.Lemma == "" {
			continue
		}
		if counts[tok.Lemma] == 0 {
			order = append(order, tok.Lemma)
		}
		counts[tok.Lemma]++
	}

	if len(order) == 0 {
		return capitalize(strings.Fields(title)[0])
	}

	best := order[0]
	for _, lemma := range order[1:] {
		if counts[lemma] > counts[best] {
			best = lemma
		}
	}
	return capitalize(best)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
