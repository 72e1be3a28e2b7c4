package pipeline

import (
	"context"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/raushankrgupta/fitchy/filters"
	"github.com/raushankrgupta/fitchy/links"
	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/policy"
	"github.com/raushankrgupta/fitchy/ranking"
	"github.com/raushankrgupta/fitchy/search"
)

// LoadMore runs one organic web search for a merged query and returns up to MaxProducts
// products the client has not shown yet. Results are filtered but not scored.
func (p *Pipeline) LoadMore(ctx context.Context, query, countryCode string, exclude []string) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if !p.searchConfigured() {
		return nil, search.ErrNoAPIKey
	}
	country := p.Country(countryCode)

	var raw []models.Candidate
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		raw, err = p.searcher.Organic(ctx, query, country, organicResults)
		return err
	})
	if err != nil {
		log.Printf("[Pipeline] load-more %q failed: %v", query, err)
		return []models.Product{}, nil
	}

	raw = p.resolveShortLinks(ctx, raw)
	for i := range raw {
		raw[i].Origin = models.OriginOrganic
		raw[i].Channel = models.ChannelOrganic
		raw[i].IsLocal = country.IsLocal(raw[i].Link, raw[i].Source)
	}

	raw = p.dropShown(raw, country, exclude)
	chain := filters.New(p.policy, country.Code, "")
	chain.Seen(exclude...)
	accepted := chain.Apply(raw)
	ordered := ranking.Order(accepted)
	if len(ordered) > MaxProducts {
		ordered = ordered[:MaxProducts]
	}

	p.enrich(ctx, ordered)
	return p.finisher.Finish(ordered, country, MaxProducts), nil
}

// dropShown removes candidates whose link the client already holds. Clients echo links
// as they received them, so the localised and affiliate-tagged forms are checked too.
func (p *Pipeline) dropShown(cands []models.Candidate, country policy.Country, exclude []string) []models.Candidate {
	if len(exclude) == 0 {
		return cands
	}
	shown := make(map[string]bool, len(exclude))
	for _, l := range exclude {
		if l = strings.TrimSpace(l); l != "" {
			shown[l] = true
		}
	}

	out := make([]models.Candidate, 0, len(cands))
	for _, c := range cands {
		localized, _ := links.Localize(p.policy, c.Link, country)
		if shown[c.Link] || shown[localized] || shown[p.finisher.Link(c.Link, country)] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// resolveShortLinks follows redirects for links on known URL shorteners.
func (p *Pipeline) resolveShortLinks(ctx context.Context, cands []models.Candidate) []models.Candidate {
	if p.resolveLink == nil {
		return cands
	}
	for i := range cands {
		if !p.isShortLink(cands[i].Link) {
			continue
		}
		resolved, err := p.resolveLink(ctx, cands[i].Link)
		if err != nil || resolved == "" {
			log.Printf("[Pipeline] cannot resolve %s: %v", cands[i].Link, err)
			continue
		}
		cands[i].Link = resolved
	}
	return cands
}

func (p *Pipeline) isShortLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, h := range p.policy.ShortLinkHosts {
		if host == h {
			return true
		}
	}
	return false
}

// enrich fills missing thumbnails and prices from product pages, a few pages at a time.
func (p *Pipeline) enrich(ctx context.Context, cands []models.Candidate) {
	if p.enricher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	sem := make(chan struct{}, enrichConcurrent)
	var wg sync.WaitGroup
	for i := range cands {
		if cands[i].Thumbnail != "" && cands[i].Price != "" {
			continue
		}
		wg.Add(1)
		go func(c *models.Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := p.enricher.Enrich(ctx, c); err != nil {
				log.Printf("[Pipeline] enrich %s: %v", c.Link, err)
			}
		}(&cands[i])
	}
	wg.Wait()
}
