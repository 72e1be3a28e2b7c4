package links

import (
	"regexp"
	"strings"

	"github.com/raushankrgupta/fitchy/policy"
)

var (
	reHMLocale  = regexp.MustCompile(`^[a-z]{2}_[a-z]{2}$`)
	reTwoLetter = regexp.MustCompile(`^[a-z]{2}$`)
)

// Localize rewrites the country segment of Inditex, H&M and Mango links to country.
// It reports whether the link changed. Applying it twice gives the same link.
func Localize(p *policy.Policy, link string, country policy.Country) (string, bool) {
	schemeEnd := strings.Index(link, "://")
	if schemeEnd < 0 {
		return link, false
	}
	hostStart := schemeEnd + 3
	slash := strings.Index(link[hostStart:], "/")
	if slash < 0 {
		return link, false
	}
	host := strings.ToLower(link[hostStart : hostStart+slash])
	segStart := hostStart + slash + 1
	segEnd := len(link)
	if i := strings.IndexAny(link[segStart:], "/?#"); i >= 0 {
		segEnd = segStart + i
	}
	seg := strings.ToLower(link[segStart:segEnd])

	replacement := ""
	switch {
	case isInditex(p, host):
		if p.IsInditexCode(seg) && p.IsInditexCode(country.Code) {
			replacement = country.Code
		}
	case host == "hm.com" || strings.HasSuffix(host, ".hm.com"):
		if reHMLocale.MatchString(seg) && country.HMLocale != "" {
			replacement = country.HMLocale
		}
	case host == "shop.mango.com":
		if reTwoLetter.MatchString(seg) && country.Code != "" {
			replacement = country.Code
		}
	}
	if replacement == "" || replacement == seg {
		return link, false
	}
	return link[:segStart] + replacement + link[segEnd:], true
}

func isInditex(p *policy.Policy, host string) bool {
	for _, brand := range p.InditexBrands {
		if host == brand || strings.HasSuffix(host, "."+brand) {
			return true
		}
	}
	return false
}
