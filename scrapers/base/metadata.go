package base

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Metadata is what a product page says about itself.
type Metadata struct {
	Title    string `json:"title"`
	Image    string `json:"image"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Brand    string `json:"brand"`
}

// DisplayPrice joins amount and currency, e.g. "899.99 TRY".
func (m *Metadata) DisplayPrice() string {
	if m.Price == "" {
		return ""
	}
	if m.Currency == "" || strings.Contains(m.Price, m.Currency) {
		return m.Price
	}
	return m.Price + " " + m.Currency
}

// Merge fills empty fields from other.
func (m *Metadata) Merge(other *Metadata) {
	if other == nil {
		return
	}
	if m.Title == "" {
		m.Title = other.Title
	}
	if m.Image == "" {
		m.Image = other.Image
	}
	if m.Price == "" {
		m.Price, m.Currency = other.Price, other.Currency
	}
	if m.Brand == "" {
		m.Brand = other.Brand
	}
}

// ExtractMetadata reads JSON-LD Product data first and OpenGraph tags second.
func ExtractMetadata(doc *goquery.Document) *Metadata {
	md := &Metadata{}
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		var v interface{}
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return true
		}
		if product := findProduct(v); product != nil {
			md.Merge(productMetadata(product))
		}
		return md.Price == "" || md.Image == ""
	})

	og := &Metadata{
		Title:    metaContent(doc, "og:title"),
		Image:    metaContent(doc, "og:image"),
		Price:    firstNonEmpty(metaContent(doc, "product:price:amount"), metaContent(doc, "og:price:amount")),
		Currency: firstNonEmpty(metaContent(doc, "product:price:currency"), metaContent(doc, "og:price:currency")),
		Brand:    metaContent(doc, "product:brand"),
	}
	md.Merge(og)
	if md.Title == "" {
		md.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return md
}

func metaContent(doc *goquery.Document, name string) string {
	sel := fmt.Sprintf(`meta[property=%q], meta[name=%q], meta[itemprop=%q]`, name, name, name)
	return strings.TrimSpace(doc.Find(sel).First().AttrOr("content", ""))
}

// findProduct walks a JSON-LD value looking for an object typed Product.
func findProduct(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if p := findProduct(item); p != nil {
				return p
			}
		}
	case map[string]interface{}:
		if isType(t["@type"], "Product") {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findProduct(graph)
		}
	}
	return nil
}

func isType(v interface{}, want string) bool {
	switch t := v.(type) {
	case string:
		return t == want
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func productMetadata(p map[string]interface{}) *Metadata {
	md := &Metadata{
		Title: stringValue(p["name"]),
		Image: imageValue(p["image"]),
		Brand: nameValue(p["brand"]),
	}
	offers := p["offers"]
	if list, ok := offers.([]interface{}); ok && len(list) > 0 {
		offers = list[0]
	}
	if o, ok := offers.(map[string]interface{}); ok {
		md.Price = firstNonEmpty(stringValue(o["price"]), stringValue(o["lowPrice"]))
		md.Currency = stringValue(o["priceCurrency"])
	}
	return md
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func nameValue(v interface{}) string {
	if m, ok := v.(map[string]interface{}); ok {
		return stringValue(m["name"])
	}
	return stringValue(v)
}

func imageValue(v interface{}) string {
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if s := imageValue(item); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		return firstNonEmpty(stringValue(t["url"]), stringValue(t["contentUrl"]))
	}
	return stringValue(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
