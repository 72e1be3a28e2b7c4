package detector

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/raushankrgupta/fitchy/models"
)

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// categoryAliases maps common LLM wording onto the whitelist.
var categoryAliases = map[string]string{
	"jackets": "jacket", "coat": "jacket", "outerwear": "jacket", "blazer": "jacket",
	"shirt": "top", "t-shirt": "top", "tshirt": "top", "sweater": "top", "hoodie": "top", "tops": "top",
	"pants": "bottom", "jeans": "bottom", "trousers": "bottom", "skirt": "bottom", "shorts": "bottom", "bottoms": "bottom",
	"dresses": "dress", "jumpsuit": "dress",
	"shoe": "shoes", "sneakers": "shoes", "boots": "shoes", "footwear": "shoes",
	"bags": "bag", "handbag": "bag", "backpack": "bag",
	"watches": "watch", "wristwatch": "watch",
}

// sanitizeModelJSON strips fences, comments and trailing commas and keeps the outermost JSON array.
// A lone object is wrapped in an array.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "["); start >= 0 {
		if end := strings.LastIndex(raw, "]"); end > start {
			obj := strings.Index(raw, "{")
			// An object opening before the array means the array is a field of a wrapper object.
			if obj < 0 || obj > start {
				return strings.TrimSpace(raw[start : end+1])
			}
		}
	}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			return "[" + raw[start:end+1] + "]"
		}
	}
	return strings.TrimSpace(raw)
}

// ParsePieces decodes the model answer leniently. Unknown fields are ignored and box
// coordinates may arrive as numbers or numeric strings.
func ParsePieces(raw string) ([]models.Piece, error) {
	clean := sanitizeModelJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w", err)
	}

	// {"items":[...]} style wrappers
	if len(items) == 1 && items[0]["category"] == nil {
		for _, v := range items[0] {
			if list, ok := v.([]interface{}); ok {
				items = items[:0]
				for _, it := range list {
					if m, ok := it.(map[string]interface{}); ok {
						items = append(items, m)
					}
				}
				break
			}
		}
	}

	pieces := make([]models.Piece, 0, len(items))
	for _, it := range items {
		p := models.Piece{
			Category:            normalizeCategory(getString(it, "category")),
			ShortTitle:          getString(it, "short_title"),
			Color:               getString(it, "color"),
			StyleType:           getString(it, "style_type"),
			Brand:               getString(it, "brand"),
			VisibleText:         getString(it, "visible_text"),
			SearchQuerySpecific: getString(it, "search_query_specific"),
			SearchQueryGeneric:  getString(it, "search_query_generic"),
			Box2D:               getBox(it["box_2d"]),
		}
		pieces = append(pieces, p)
	}
	return pieces, nil
}

func normalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if alias, ok := categoryAliases[c]; ok {
		return alias
	}
	return c
}

func getString(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func getBox(v interface{}) []float64 {
	list, ok := v.([]interface{})
	if !ok || len(list) != 4 {
		return nil
	}
	box := make([]float64, 0, 4)
	for _, n := range list {
		switch x := n.(type) {
		case float64:
			box = append(box, x)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil
			}
			box = append(box, f)
		default:
			return nil
		}
	}
	return box
}
