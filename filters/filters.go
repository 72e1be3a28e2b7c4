package filters

import (
	"strings"

	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/policy"
)

// Reason names the filter that rejected a candidate. The empty Reason means accepted.
type Reason string

const (
	Accepted          Reason = ""
	ReasonMissing     Reason = "missing_fields"
	ReasonDuplicate   Reason = "duplicate"
	ReasonBlocked     Reason = "blocked_domain"
	ReasonScript      Reason = "foreign_script"
	ReasonForeignWord Reason = "foreign_clothing_word"
	ReasonNonClothing Reason = "non_clothing"
	ReasonSpam        Reason = "spam_domain"
	ReasonNotProduct  Reason = "not_product_url"
	ReasonCategory    Reason = "category_mismatch"
)

// maxNonLatinShare is the highest share of non-Latin letters a TR title may carry.
const maxNonLatinShare = 0.3

// Chain is the ordered candidate filter for one piece. The first rejection wins.
// Exact candidates skip the non-clothing, product-URL and category checks.
type Chain struct {
	policy   *policy.Policy
	country  string
	category string
	seen     map[string]bool
	Rejected map[Reason]int
}

// New builds a chain for one piece. An empty category disables the category check.
func New(p *policy.Policy, country, category string) *Chain {
	return &Chain{
		policy:   p,
		country:  strings.ToLower(country),
		category: category,
		seen:     make(map[string]bool),
		Rejected: make(map[Reason]int),
	}
}

// Seen marks links as already shown, e.g. the load-more exclude set.
func (c *Chain) Seen(links ...string) {
	for _, l := range links {
		if l != "" {
			c.seen[l] = true
		}
	}
}

// Apply returns the accepted candidates in input order.
func (c *Chain) Apply(cands []models.Candidate) []models.Candidate {
	out := make([]models.Candidate, 0, len(cands))
	for _, cand := range cands {
		if c.Accept(cand) {
			out = append(out, cand)
		}
	}
	return out
}

// Accept runs the chain on one candidate and records its link when accepted.
func (c *Chain) Accept(cand models.Candidate) bool {
	r := c.Check(cand)
	if r != Accepted {
		c.Rejected[r]++
		return false
	}
	c.seen[cand.Link] = true
	return true
}

// Check returns the first failing filter without recording anything.
func (c *Chain) Check(cand models.Candidate) Reason {
	link := strings.TrimSpace(cand.Link)
	if link == "" || (strings.TrimSpace(cand.Title) == "" && !cand.Exact) {
		return ReasonMissing
	}
	if c.seen[link] {
		return ReasonDuplicate
	}
	if IsBlocked(c.policy, link) {
		return ReasonBlocked
	}

	title := policy.NewText(cand.Title)
	if c.country == "tr" {
		if share, letters := policy.NonLatinShare(cand.Title); letters >= 3 && share > maxNonLatinShare {
			return ReasonScript
		}
		for _, tok := range title.Tokens {
			if c.policy.IsForeignClothingWord(tok) {
				return ReasonForeignWord
			}
		}
	}
	if !cand.Exact && IsNonClothing(c.policy, title) {
		return ReasonNonClothing
	}
	if IsSpam(c.policy, link, cand.Source) {
		return ReasonSpam
	}
	if !cand.Exact && !IsProductURL(c.policy, link) {
		return ReasonNotProduct
	}
	if !cand.Exact && c.category != "" && CategoryMismatch(c.policy, c.category, title) {
		return ReasonCategory
	}
	return Accepted
}

// IsBlocked reports whether link belongs to a social, blog, media or other non-shop domain.
func IsBlocked(p *policy.Policy, link string) bool {
	return containsAny(strings.ToLower(link), p.BlockedDomains)
}

// IsSpam reports whether link or source matches a replica or dropshipping pattern.
func IsSpam(p *policy.Policy, link, source string) bool {
	return containsAny(strings.ToLower(link), p.SpamDomains) || containsAny(strings.ToLower(source), p.SpamDomains)
}

// IsNonClothing reports whether a title describes homeware, beauty, blogs, listicles and the like.
func IsNonClothing(p *policy.Policy, title policy.Text) bool {
	return containsAny(title.Raw, p.NonClothingTerms) || p.MatchesNonClothingPattern(strings.TrimSpace(title.Raw))
}

// IsProductURL checks known retailers against their product-page pattern and rejects
// landing pages elsewhere unless they carry a product id. Unknown shapes are accepted.
func IsProductURL(p *policy.Policy, link string) bool {
	if re, ok := p.ProductPattern(link); ok {
		return re.MatchString(link)
	}
	if p.IsLanding(link) {
		return p.HasGenericProductID(link)
	}
	return true
}

// CategoryMismatch reports whether the title names another category but not the target one,
// or uses generic clothing words while the target is an accessory.
func CategoryMismatch(p *policy.Policy, target string, title policy.Text) bool {
	hits := p.CategoriesIn(title)
	if len(hits) > 0 && !containsString(hits, target) {
		return true
	}
	return p.IsAccessory(target) && title.HasAny(p.GenericClothingWords)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsString(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}
