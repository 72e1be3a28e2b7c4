package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/policy"
)

const (
	QuerySpecific = "specific"
	QueryGeneric  = "generic"

	maxExtraTokens = 2
)

// BuildQuery merges up to two OCR tokens into the specific query, or falls back to the
// generic one. An empty query means the piece gets no shopping call.
func BuildQuery(p *policy.Policy, piece models.Piece) (string, string) {
	specific := strings.Join(strings.Fields(piece.SearchQuerySpecific), " ")
	if specific == "" {
		generic := strings.Join(strings.Fields(piece.SearchQueryGeneric), " ")
		if generic == "" {
			return "", ""
		}
		return generic, QueryGeneric
	}

	present := policy.Lower(specific)
	var extra []string
	for _, raw := range strings.Fields(piece.Brand + " " + piece.VisibleText) {
		tok := strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		lower := policy.Lower(tok)
		if utf8.RuneCountInString(tok) <= 2 || p.IsStopword(lower) || strings.Contains(present, lower) {
			continue
		}
		extra = append(extra, tok)
		present += " " + lower
		if len(extra) == maxExtraTokens {
			break
		}
	}
	if len(extra) > 0 {
		specific += " " + strings.Join(extra, " ")
	}
	return specific, QuerySpecific
}
