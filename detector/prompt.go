package detector

import (
	"fmt"
	"strings"

	"github.com/raushankrgupta/fitchy/policy"
)

// BuildPrompt writes the detection instructions for one country.
func BuildPrompt(country policy.Country, categories []string, maxPieces int) string {
	lang := country.Language
	if lang == "" {
		lang = "English"
	}
	male, female := country.Male(), country.Female()
	if male == "" {
		male = "men"
	}
	if female == "" {
		female = "women"
	}

	return fmt.Sprintf(`You are a fashion product identifier. Look at the photo and list the clothing items and accessories the person is wearing.

Return at most %[1]d items, the most visible first. Allowed categories, use these exact English words: %[2]s.
Skip anything else (hair, skin, background, phones, furniture).

For every item return an object with these keys:
- "category": one of the allowed categories
- "short_title": at most 4 words in %[3]s, e.g. "green bomber jacket"
- "color": main color in %[3]s
- "style_type": garment form such as shirt, t-shirt, sweater, hoodie, jeans, trousers, skirt, sneaker, boot, tote
- "brand": the brand if a logo or label is readable, otherwise "?"
- "visible_text": OCR of ANY text on the item. Read every patch, logo, embroidery, zipper pull, button and tag character by character. Use "none" when nothing is legible
- "search_query_specific": a %[3]s shopping query with brand, color, style and gender; use the gender word "%[4]s" for men or "%[5]s" for women
- "search_query_generic": a shorter %[3]s shopping query without brand
- "box_2d": [ymin, xmin, ymax, xmax] in a 1000x1000 coordinate space

Bounding box rules:
- Boxes are tight around the garment itself, not the whole person.
- Upper garments (jacket, top) end at the waistline. Lower garments (bottom) start at the waistline.
- Boxes of different items must not overlap.
- Shoes: cover both feet. Bags and watches: only the object.

Output ONLY a JSON array of these objects. No prose, no markdown, no comments.`,
		maxPieces, strings.Join(categories, ", "), lang, male, female)
}
