package search

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/raushankrgupta/fitchy/models"
)

// rawResult is the union of the result item shapes the three engines return.
type rawResult struct {
	Title            string    `json:"title"`
	Link             string    `json:"link"`
	ProductLink      string    `json:"product_link"`
	Source           string    `json:"source"`
	DisplayedLink    string    `json:"displayed_link"`
	Price            flexPrice `json:"price"`
	Thumbnail        string    `json:"thumbnail"`
	SerpapiThumbnail string    `json:"serpapi_thumbnail"`
	Image            string    `json:"image"`
	Brand            string    `json:"brand"`
}

func (r rawResult) candidate() (models.Candidate, bool) {
	link := strings.TrimSpace(r.Link)
	if link == "" {
		link = strings.TrimSpace(r.ProductLink)
	}
	if link == "" {
		return models.Candidate{}, false
	}

	source := strings.TrimSpace(r.Source)
	if source == "" {
		source = hostOf(link)
	}
	thumb := r.Thumbnail
	if thumb == "" {
		thumb = r.SerpapiThumbnail
	}

	return models.Candidate{
		Title:     strings.TrimSpace(r.Title),
		Link:      link,
		Source:    source,
		Price:     string(r.Price),
		Thumbnail: thumb,
		Image:     r.Image,
		Brand:     r.Brand,
	}, true
}

// flexPrice accepts "₺1.299", 12.5 or {"value": "$12.50", "extracted_value": 12.5}.
type flexPrice string

func (p *flexPrice) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = flexPrice(strings.TrimSpace(s))
	case '{':
		var obj struct {
			Value          string  `json:"value"`
			ExtractedValue float64 `json:"extracted_value"`
			Currency       string  `json:"currency"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		switch {
		case obj.Value != "":
			*p = flexPrice(strings.TrimSpace(obj.Value))
		case obj.ExtractedValue > 0:
			*p = flexPrice(strings.TrimSpace(obj.Currency + strconv.FormatFloat(obj.ExtractedValue, 'f', -1, 64)))
		}
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err == nil && f > 0 {
			*p = flexPrice(strconv.FormatFloat(f, 'f', -1, 64))
		}
	}
	return nil
}

func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
