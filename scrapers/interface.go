package scrapers

import (
	"context"

	"github.com/raushankrgupta/fitchy/scrapers/base"
)

// Scraper defines the interface for all product page scrapers
type Scraper interface {
	// CanScrape checks if the scraper can handle the given URL
	CanScrape(url string) bool
	// ScrapeProduct reads the product metadata from the given URL
	ScrapeProduct(ctx context.Context, url string) (*base.Metadata, error)
}
