package links

import (
	"regexp"
	"strings"

	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/policy"
)

var (
	reSizeSuffix  = regexp.MustCompile(`=s\d+(-[a-zA-Z0-9-]*)?$`)
	reWHSuffix    = regexp.MustCompile(`=w\d+-h\d+[a-zA-Z0-9-]*$`)
	reTbnWidth    = regexp.MustCompile(`([?&])(w|h)=\d+`)
	defaultTbnURL = "https://encrypted-tbn0.gstatic.com/"
)

// Finisher turns ranked candidates into client-facing products.
type Finisher struct {
	policy    *policy.Policy
	affiliate Affiliate
}

func NewFinisher(p *policy.Policy, affiliate Affiliate) *Finisher {
	return &Finisher{policy: p, affiliate: affiliate}
}

// Finish localises, tags and cleans at most limit candidates (limit <= 0 means all).
func (f *Finisher) Finish(cands []models.Candidate, country policy.Country, limit int) []models.Product {
	if limit <= 0 || limit > len(cands) {
		limit = len(cands)
	}
	out := make([]models.Product, 0, limit)
	for _, c := range cands[:limit] {
		link, changed := Localize(f.policy, c.Link, country)
		if changed {
			// The price belonged to another storefront.
			c.Price = ""
		}
		c.Link = link
		out = append(out, f.Clean(c))
	}
	return out
}

// Link returns link in the form a client receives it: localised, then affiliate-tagged.
func (f *Finisher) Link(link string, country policy.Country) string {
	localized, _ := Localize(f.policy, link, country)
	return f.affiliate.Rewrite(localized)
}

// Clean drops scratch state, attaches badges and fixes the thumbnail URLs.
func (f *Finisher) Clean(c models.Candidate) models.Product {
	lower := strings.ToLower(c.Link)
	return models.Product{
		Title:      c.Title,
		Link:       f.affiliate.Rewrite(c.Link),
		Source:     c.Source,
		Price:      c.Price,
		Thumbnail:  f.Thumbnail(c.Thumbnail),
		Image:      f.Thumbnail(c.Image),
		Brand:      c.Brand,
		IsLocal:    c.IsLocal,
		AIVerified: c.AIVerified,
		Verified:   containsAny(lower, f.policy.VerifiedDomains),
		Sponsored:  containsAny(lower, f.policy.SponsoredDomains),
	}
}

// Thumbnail asks Google for a 500px rendition and rebases relative tbn paths.
func (f *Finisher) Thumbnail(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "images?q=tbn:") || strings.HasPrefix(u, "/images?q=tbn:") {
		base := f.policy.ThumbnailBase
		if base == "" {
			base = defaultTbnURL
		}
		u = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(u, "/")
	}

	switch {
	case strings.Contains(u, "googleusercontent.com") || strings.Contains(u, "gstatic.com/shopping"):
		if reSizeSuffix.MatchString(u) {
			u = reSizeSuffix.ReplaceAllString(u, "=s500")
		} else if reWHSuffix.MatchString(u) {
			u = reWHSuffix.ReplaceAllString(u, "=s500")
		}
	case strings.Contains(u, "encrypted-tbn"):
		u = reTbnWidth.ReplaceAllString(u, "${1}${2}=500")
		if reSizeSuffix.MatchString(u) {
			u = reSizeSuffix.ReplaceAllString(u, "=s500")
		}
	}
	return u
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
