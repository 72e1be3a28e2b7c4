package amazon

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/raushankrgupta/fitchy/scrapers/base"
)

// AmazonScraper reads Amazon product pages, whose price and image rarely appear in meta tags.
type AmazonScraper struct {
	*base.BaseScraper
}

func NewAmazonScraper(b *base.BaseScraper) *AmazonScraper {
	return &AmazonScraper{BaseScraper: b}
}

func (s *AmazonScraper) CanScrape(url string) bool {
	return strings.Contains(url, "amazon.") || strings.Contains(url, "amzn.")
}

func (s *AmazonScraper) ScrapeProduct(ctx context.Context, url string) (*base.Metadata, error) {
	doc, err := s.FetchDocument(ctx, url, func(doc *goquery.Document) bool {
		return strings.TrimSpace(doc.Find("#productTitle").Text()) != ""
	})
	if err != nil {
		return nil, err
	}
	return Parse(doc), nil
}

// Parse extracts title, price, image and brand from an Amazon product page.
func Parse(doc *goquery.Document) *base.Metadata {
	md := &base.Metadata{
		Title: strings.TrimSpace(doc.Find("#productTitle").Text()),
	}

	for _, sel := range []string{
		".priceToPay .a-offscreen",
		"#corePriceDisplay_desktop_feature_div .a-price.apexPriceToPay .a-offscreen",
		".a-price.a-text-price.a-size-medium.apexPriceToPay .a-offscreen",
		"#priceblock_dealprice",
		"#priceblock_ourprice",
		".a-price .a-offscreen",
	} {
		if p := strings.TrimSpace(doc.Find(sel).First().Text()); p != "" {
			md.Price = p
			break
		}
	}
	if md.Price == "" {
		// Visible price split into symbol and whole part
		whole := strings.TrimSuffix(strings.TrimSpace(doc.Find(".priceToPay .a-price-whole").First().Text()), ".")
		if whole != "" {
			md.Price = strings.TrimSpace(doc.Find(".priceToPay .a-price-symbol").First().Text()) + whole
		}
	}

	img := doc.Find("#landingImage, #imgBlkFront").First()
	md.Image = img.AttrOr("data-old-hires", "")
	if md.Image == "" {
		md.Image = img.AttrOr("src", "")
	}

	brand := strings.TrimSpace(doc.Find("#bylineInfo").First().Text())
	for _, prefix := range []string{"Visit the ", "Brand: ", "Marka: "} {
		brand = strings.TrimPrefix(brand, prefix)
	}
	md.Brand = strings.TrimSpace(strings.TrimSuffix(brand, " Store"))

	md.Merge(base.ExtractMetadata(doc))
	return md
}
