package policy

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// prefixMinLen is the shortest keyword that may match as a word prefix ("ceket" -> "ceketi").
const prefixMinLen = 5

// Lower lower-cases s, folding the Turkish dotted capital I to a plain i.
func Lower(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "İ", "i"))
}

// Text is a tokenised, lower-cased title ready for keyword lookups.
type Text struct {
	Raw    string
	Tokens []string
	padded string
}

// NewText tokenises s on anything that is not a letter, digit or inner hyphen.
func NewText(s string) Text {
	lower := Lower(s)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return Text{Raw: lower, Tokens: tokens, padded: " " + strings.Join(tokens, " ") + " "}
}

// Has reports whether keyword occurs as a word, a word prefix (long keywords only) or a phrase.
func (t Text) Has(keyword string) bool {
	kw := Lower(strings.TrimSpace(keyword))
	if kw == "" {
		return false
	}
	if strings.Contains(kw, " ") {
		return strings.Contains(t.padded, " "+kw+" ")
	}
	long := utf8.RuneCountInString(kw) >= prefixMinLen
	for _, tok := range t.Tokens {
		if tok == kw || (long && strings.HasPrefix(tok, kw)) {
			return true
		}
	}
	return false
}

// HasAny reports whether any keyword matches.
func (t Text) HasAny(keywords []string) bool {
	for _, kw := range keywords {
		if t.Has(kw) {
			return true
		}
	}
	return false
}

// CategoriesIn returns the sorted list of categories whose keywords appear in t.
func (p *Policy) CategoriesIn(t Text) []string {
	var hits []string
	for _, c := range p.categoryOrder {
		if t.HasAny(p.CategoryKeywords[c]) {
			hits = append(hits, c)
		}
	}
	return hits
}

// ColorsIn returns the sorted color families mentioned in t.
func (p *Policy) ColorsIn(t Text) []string {
	var hits []string
	for _, fam := range p.colorOrder {
		if t.HasAny(p.ColorWords[fam]) {
			hits = append(hits, fam)
		}
	}
	return hits
}

// SubtypesIn returns the sorted subtypes of category mentioned in t.
func (p *Policy) SubtypesIn(category string, t Text) []string {
	groups := p.SubtypeGroups[category]
	var hits []string
	for _, name := range sortedKeys(groups) {
		if t.HasAny(groups[name]) {
			hits = append(hits, name)
		}
	}
	return hits
}

// NonLatinShare returns the share of letters outside the Latin script and the letter count.
func NonLatinShare(s string) (float64, int) {
	var letters, nonLatin int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if !unicode.Is(unicode.Latin, r) {
			nonLatin++
		}
	}
	if letters == 0 {
		return 0, 0
	}
	return float64(nonLatin) / float64(letters), letters
}
