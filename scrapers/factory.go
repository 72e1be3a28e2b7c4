package scrapers

import (
	"context"
	"fmt"

	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/scrapers/amazon"
	"github.com/raushankrgupta/fitchy/scrapers/base"
)

// Registry picks a scraper for a product URL; the generic scraper is the last resort.
type Registry struct {
	scrapers []Scraper
}

func NewRegistry(browserFallback bool) *Registry {
	b := base.NewBaseScraper(browserFallback)
	return &Registry{scrapers: []Scraper{
		amazon.NewAmazonScraper(b),
		NewGenericScraper(b),
	}}
}

// GetScraper returns the first scraper that accepts url.
func (r *Registry) GetScraper(url string) (Scraper, error) {
	for _, s := range r.scrapers {
		if s.CanScrape(url) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("no scraper found for url: %s", url)
}

// Enrich fills a candidate's missing thumbnail, price and brand from its product page.
func (r *Registry) Enrich(ctx context.Context, c *models.Candidate) error {
	s, err := r.GetScraper(c.Link)
	if err != nil {
		return err
	}
	md, err := s.ScrapeProduct(ctx, c.Link)
	if err != nil {
		return err
	}
	if c.Thumbnail == "" {
		c.Thumbnail = md.Image
	}
	if c.Price == "" {
		c.Price = md.DisplayPrice()
	}
	if c.Brand == "" {
		c.Brand = md.Brand
	}
	if c.Title == "" {
		c.Title = md.Title
	}
	return nil
}
