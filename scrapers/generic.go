package scrapers

import (
	"context"

	"github.com/raushankrgupta/fitchy/scrapers/base"
)

// GenericScraper reads JSON-LD and OpenGraph metadata, which most shops publish.
type GenericScraper struct {
	*base.BaseScraper
}

func NewGenericScraper(b *base.BaseScraper) *GenericScraper {
	return &GenericScraper{BaseScraper: b}
}

func (s *GenericScraper) CanScrape(url string) bool { return true }

func (s *GenericScraper) ScrapeProduct(ctx context.Context, url string) (*base.Metadata, error) {
	doc, err := s.FetchDocument(ctx, url, base.IsValidDocument)
	if err != nil {
		return nil, err
	}
	return base.ExtractMetadata(doc), nil
}
