package policy

import (
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
)

//go:embed policy.json countries.json
var embedded embed.FS

// Country is the static locale configuration for one market
type Country struct {
	Code        string            `json:"code"`
	Name        string            `json:"name"`
	GL          string            `json:"gl"`
	HL          string            `json:"hl"`
	Currency    string            `json:"currency"`
	Language    string            `json:"language"`
	LocalStores []string          `json:"local_stores"`
	Gender      map[string]string `json:"gender"`
	HMLocale    string            `json:"hm_locale"`
}

// Male returns the local word for men's clothing.
func (c Country) Male() string { return c.Gender["male"] }

// Female returns the local word for women's clothing.
func (c Country) Female() string { return c.Gender["female"] }

// IsLocal reports whether the link or source belongs to one of the country's stores.
func (c Country) IsLocal(link, source string) bool {
	l := strings.ToLower(link)
	s := strings.ToLower(source)
	for _, store := range c.LocalStores {
		if strings.Contains(l, store) || strings.Contains(s, store) {
			return true
		}
	}
	return false
}

type domainPattern struct {
	domain string
	re     *regexp.Regexp
}

// Policy holds every filter list and lookup table the pipeline consults.
// It is data, loaded from JSON, so operators can extend it without a rebuild.
type Policy struct {
	Categories          []string `json:"categories"`
	AccessoryCategories []string `json:"accessory_categories"`
	MaxPieces           int      `json:"max_pieces"`
	QueryStopwords      []string `json:"query_stopwords"`

	BlockedDomains         []string          `json:"blocked_domains"`
	NonClothingTerms       []string          `json:"non_clothing_terms"`
	NonClothingPatterns    []string          `json:"non_clothing_patterns"`
	ForeignClothingWords   []string          `json:"foreign_clothing_words"`
	SpamDomains            []string          `json:"spam_domains"`
	ProductURLPatterns     map[string]string `json:"product_url_patterns"`
	LandingPatterns        []string          `json:"landing_patterns"`
	GenericProductPatterns []string          `json:"generic_product_patterns"`

	CategoryKeywords     map[string][]string            `json:"category_keywords"`
	GenericClothingWords []string                       `json:"generic_clothing_words"`
	ColorWords           map[string][]string            `json:"color_words"`
	ColorConflicts       map[string][]string            `json:"color_conflicts"`
	SubtypeGroups        map[string]map[string][]string `json:"subtype_groups"`

	VerifiedDomains     []string `json:"verified_domains"`
	SponsoredDomains    []string `json:"sponsored_domains"`
	InditexBrands       []string `json:"inditex_brands"`
	InditexCountryCodes []string `json:"inditex_country_codes"`
	ShortLinkHosts      []string `json:"short_link_hosts"`
	ThumbnailBase       string   `json:"thumbnail_base"`

	Countries map[string]Country `json:"countries,omitempty"`

	nonClothingRes    []*regexp.Regexp
	landingRes        []*regexp.Regexp
	genericProductRes []*regexp.Regexp
	productRes        []domainPattern
	categoryOrder     []string
	colorOrder        []string
	inditexCodes      map[string]bool
	foreignWords      map[string]bool
	stopwords         map[string]bool
}

var (
	defaultOnce   sync.Once
	defaultPolicy *Policy
)

// Default returns the policy compiled from the embedded tables.
func Default() *Policy {
	defaultOnce.Do(func() {
		p, err := Load("")
		if err != nil {
			log.Fatalf("embedded policy is invalid: %v", err)
		}
		defaultPolicy = p
	})
	return defaultPolicy
}

// Load reads a policy file. An empty path loads the embedded tables.
// When the file carries no "countries" object the embedded country table is used.
func Load(path string) (*Policy, error) {
	var rules []byte
	var err error
	if path == "" {
		rules, err = embedded.ReadFile("policy.json")
	} else {
		rules, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}

	countries, err := embedded.ReadFile("countries.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read countries: %w", err)
	}
	return Parse(rules, countries)
}

// Parse builds a Policy from raw rule and country JSON.
func Parse(rules, countries []byte) (*Policy, error) {
	p := &Policy{}
	if err := json.Unmarshal(rules, p); err != nil {
		return nil, fmt.Errorf("failed to decode policy: %w", err)
	}
	if len(p.Countries) == 0 && len(countries) > 0 {
		if err := json.Unmarshal(countries, &p.Countries); err != nil {
			return nil, fmt.Errorf("failed to decode countries: %w", err)
		}
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Policy) compile() error {
	if p.MaxPieces <= 0 {
		p.MaxPieces = 4
	}

	var err error
	if p.nonClothingRes, err = compileAll(p.NonClothingPatterns); err != nil {
		return err
	}
	if p.landingRes, err = compileAll(p.LandingPatterns); err != nil {
		return err
	}
	if p.genericProductRes, err = compileAll(p.GenericProductPatterns); err != nil {
		return err
	}

	p.productRes = p.productRes[:0]
	for domain, expr := range p.ProductURLPatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("bad product pattern for %s: %w", domain, err)
		}
		p.productRes = append(p.productRes, domainPattern{domain: strings.ToLower(domain), re: re})
	}
	// Longest domain first so "pullandbear.com" is never shadowed by a shorter key.
	sort.Slice(p.productRes, func(i, j int) bool {
		if len(p.productRes[i].domain) != len(p.productRes[j].domain) {
			return len(p.productRes[i].domain) > len(p.productRes[j].domain)
		}
		return p.productRes[i].domain < p.productRes[j].domain
	})

	p.categoryOrder = sortedKeys(p.CategoryKeywords)
	p.colorOrder = sortedKeys(p.ColorWords)
	p.inditexCodes = toSet(p.InditexCountryCodes)
	p.foreignWords = toSet(p.ForeignClothingWords)
	p.stopwords = toSet(p.QueryStopwords)

	for code, c := range p.Countries {
		if c.Code == "" {
			c.Code = code
		}
		for i := range c.LocalStores {
			c.LocalStores[i] = strings.ToLower(c.LocalStores[i])
		}
		p.Countries[code] = c
	}
	return nil
}

// ResolveCountry maps a requested code to a configured one, falling back to fallback and then "us".
func (p *Policy) ResolveCountry(code, fallback string) string {
	for _, c := range []string{code, fallback, "us"} {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "uk" {
			c = "gb"
		}
		if _, ok := p.Countries[c]; ok {
			return c
		}
	}
	return "us"
}

// Country returns the configuration for code, or the US configuration when unknown.
func (p *Policy) Country(code string) Country {
	cc := p.ResolveCountry(code, "")
	if c, ok := p.Countries[cc]; ok {
		return c
	}
	return Country{Code: "us", GL: "us", HL: "en", Language: "English", Gender: map[string]string{"male": "men", "female": "women"}}
}

func (p *Policy) IsAllowedCategory(category string) bool {
	return contains(p.Categories, category)
}

func (p *Policy) IsAccessory(category string) bool {
	return contains(p.AccessoryCategories, category)
}

func (p *Policy) IsStopword(word string) bool {
	return p.stopwords[word]
}

func (p *Policy) IsForeignClothingWord(token string) bool {
	return p.foreignWords[token]
}

func (p *Policy) IsInditexCode(code string) bool {
	return p.inditexCodes[code]
}

// MatchesNonClothingPattern reports whether a lower-cased title looks like a listicle or a profile.
func (p *Policy) MatchesNonClothingPattern(lowerTitle string) bool {
	for _, re := range p.nonClothingRes {
		if re.MatchString(lowerTitle) {
			return true
		}
	}
	return false
}

// ProductPattern returns the product-page regex for a known retailer link.
func (p *Policy) ProductPattern(link string) (*regexp.Regexp, bool) {
	l := strings.ToLower(link)
	for _, dp := range p.productRes {
		if strings.Contains(l, dp.domain) {
			return dp.re, true
		}
	}
	return nil, false
}

// IsLanding reports whether a link looks like a category or search page.
func (p *Policy) IsLanding(link string) bool {
	return matchAny(p.landingRes, strings.ToLower(link))
}

// HasGenericProductID reports whether a link carries a recognisable product id.
func (p *Policy) HasGenericProductID(link string) bool {
	return matchAny(p.genericProductRes, strings.ToLower(link))
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		re, err := regexp.Compile(e)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", e, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[strings.ToLower(it)] = true
	}
	return set
}

func contains(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}
