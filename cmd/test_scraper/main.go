package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/raushankrgupta/fitchy/config"
	"github.com/raushankrgupta/fitchy/policy"
	"github.com/raushankrgupta/fitchy/scrapers"
	"github.com/raushankrgupta/fitchy/utils"
)

// Reads product metadata for the URLs given on the command line, the same way
// load-more enriches organic results.
func main() {
	config.LoadConfig()

	urls := os.Args[1:]
	if len(urls) == 0 {
		urls = []string{
			"https://amzn.eu/d/0hVQ3xk",
			"https://www.trendyol.com/koton/erkek-bomber-ceket-p-123456789",
			"https://www2.hm.com/en_us/productpage.1234567001.html",
		}
	}

	rules := policy.Default()
	registry := scrapers.NewRegistry(config.ScraperBrowserFallback)

	for _, u := range urls {
		fmt.Printf("Testing URL: %s\n", u)
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)

		resolved, err := utils.ResolveShortenedURL(ctx, u)
		if err != nil {
			log.Printf("Failed to resolve %s: %v\n", u, err)
			resolved = u
		}
		fmt.Printf("Resolved URL: %s\n", resolved)
		fmt.Printf("Product page: %v\n", rules.HasGenericProductID(resolved) || isKnownProduct(rules, resolved))

		scraper, err := registry.GetScraper(resolved)
		if err != nil {
			log.Printf("Failed to get scraper for %s: %v\n", resolved, err)
			cancel()
			continue
		}
		fmt.Printf("Scraper: %T\n", scraper)

		md, err := scraper.ScrapeProduct(ctx, resolved)
		cancel()
		if err != nil {
			log.Printf("Failed to scrape product: %v\n", err)
			continue
		}

		b, _ := json.MarshalIndent(md, "", "  ")
		fmt.Printf("Metadata: %s\n", string(b))
		fmt.Println("--------------------------------------------------")
	}
}

func isKnownProduct(p *policy.Policy, link string) bool {
	re, ok := p.ProductPattern(link)
	return ok && re.MatchString(link)
}
