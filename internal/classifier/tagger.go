package classifier

import (
	"strings"
	"unicode"
)

// Tag is a coarse part-of-speech tag
type Tag string

const (
	TagNoun        Tag = "NOUN"
	TagProperNoun  Tag = "PROPN"
	TagAdjective   Tag = "ADJ"
	TagVerb        Tag = "VERB"
	TagNumeral     Tag = "NUM"
	TagAdposition  Tag = "ADP"
	TagConjunction Tag = "CCONJ"
	TagSymbol      Tag = "SYM"
	TagOther       Tag = "X"
)

// Token is one tagged word of a title
type Token struct {
	Text  string
	Lemma string
	Tag   Tag
}

// Tagger assigns part-of-speech tags and lemmas to the words of a text
type Tagger interface {
	Tag(text string) []Token
}

// RuleTagger tags Russian and English product titles with suffix and
// script rules. It has no model files.
type RuleTagger struct{}

var (
	adpositions = set("в", "во", "на", "с", "со", "для", "без", "из", "от", "до", "по", "под", "над", "при", "к", "ко", "у", "о", "об", "про", "за",
		"for", "with", "of", "in", "on", "to", "from", "by", "without")
	conjunctions = set("и", "или", "а", "но", "да", "and", "or", "&", "+")

	units = set("г", "гр", "кг", "мг", "мл", "л", "шт", "уп", "см", "мм", "м", "вт", "гб", "тб", "дм", "г.", "шт.", "уп.", "%",
		"g", "kg", "ml", "l", "pcs", "gb", "tb", "mm", "cm", "w")

	adjectiveEndings = []string{"ого", "его", "ому", "ему", "ый", "ий", "ой", "ая", "яя", "ое", "ее", "ые", "ие", "ых", "их", "ым", "им", "ую", "юю"}
	verbEndings      = []string{"ться", "тся", "ть", "чь"}

	// nouns that look like adjectives or verbs by their ending
	nounExceptions = set("мороженое", "пирожное", "жаркое", "заливное", "второе", "первое", "горячее", "слой", "настой", "напиток",
		"кровать", "сеть", "печать", "часть", "запчасть", "ртуть", "нить", "мать", "смесь")

	lemmaExceptions = map[string]string{
		"яйца":     "яйцо",
		"яиц":      "яйцо",
		"яблоки":   "яблоко",
		"огурцы":   "огурец",
		"перцы":    "перец",
		"макароны": "макароны",
		"сливки":   "сливки",
		"овощи":    "овощ",
		"фрукты":   "фрукт",
		"орехи":    "орех",
		"грибы":    "гриб",
		"пельмени": "пельмени",
		"чипсы":    "чипсы",
		"хлопья":   "хлопья",
		"наушники": "наушники",
		"часы":     "часы",
		"брюки":    "брюки",
		"очки":     "очки",
		"ножницы":  "ножницы",
		"весы":     "весы",
	}
)

// Tag implements Tagger
func (RuleTagger) Tag(text string) []Token {
	words := strings.FieldsFunc(text, isSeparator)
	tokens := make([]Token, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".-–—'’`")
		if w == "" {
			continue
		}
		tag := tagWord(w)
		tokens = append(tokens, Token{Text: w, Lemma: lemma(w, tag), Tag: tag})
	}
	return tokens
}

func isSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	return strings.ContainsRune(`,;:()[]{}/\|«»"!?*`, r)
}

func tagWord(w string) Tag {
	lower := strings.ToLower(w)
	switch {
	case hasDigit(w):
		return TagNumeral
	case !hasLetter(w):
		return TagSymbol
	case has(units, lower):
		return TagSymbol
	case has(adpositions, lower):
		return TagAdposition
	case has(conjunctions, lower):
		return TagConjunction
	case isCyrillic(w):
		return tagRussian(lower)
	default:
		return tagLatin(w)
	}
}

func tagRussian(lower string) Tag {
	if len([]rune(lower)) < 2 {
		return TagOther
	}
	if has(nounExceptions, lower) {
		return TagNoun
	}
	for _, end := range verbEndings {
		if strings.HasSuffix(lower, end) {
			return TagVerb
		}
	}
	for _, end := range adjectiveEndings {
		if strings.HasSuffix(lower, end) {
			return TagAdjective
		}
	}
	return TagNoun
}

// Latin words are brand or model names unless written entirely in lower case
func tagLatin(w string) Tag {
	for _, r := range w {
		if unicode.IsUpper(r) {
			return TagProperNoun
		}
	}
	if len(w) < 2 {
		return TagOther
	}
	return TagNoun
}

func lemma(w string, tag Tag) string {
	lower := strings.ToLower(w)
	if tag != TagNoun {
		return lower
	}
	if l, ok := lemmaExceptions[lower]; ok {
		return l
	}
	runes := []rune(lower)
	if isCyrillic(lower) {
		switch {
		case len(runes) > 4 && strings.HasSuffix(lower, "ки"):
			return string(runes[:len(runes)-1]) + "а"
		case len(runes) > 4 && strings.HasSuffix(lower, "ы"):
			return string(runes[:len(runes)-1])
		}
		return lower
	}
	if len(runes) > 3 && strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss") {
		return string(runes[:len(runes)-1])
	}
	return lower
}

func hasDigit(w string) bool {
	return strings.IndexFunc(w, unicode.IsDigit) >= 0
}

func hasLetter(w string) bool {
	return strings.IndexFunc(w, unicode.IsLetter) >= 0
}

func isCyrillic(w string) bool {
	for _, r := range w {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func has(m map[string]struct{}, w string) bool {
	_, ok := m[w]
	return ok
}
