package links

import (
	"net/url"
	"strings"
)

const skimlinksBase = "https://go.skimresources.com/"

// Affiliate holds the partner identifiers used to tag outgoing links.
type Affiliate struct {
	TrendyolPartnerID string
	SkimlinksID       string
}

// Rewrite tags Trendyol links with the partner id, wraps anything else with Skimlinks,
// and leaves the link alone when neither id is configured.
func (a Affiliate) Rewrite(link string) string {
	if a.TrendyolPartnerID != "" && strings.Contains(strings.ToLower(link), "trendyol.com") {
		u, err := url.Parse(link)
		if err == nil {
			q := u.Query()
			q.Set("boutiqueId", a.TrendyolPartnerID)
			q.Set("merchantId", a.TrendyolPartnerID)
			u.RawQuery = q.Encode()
			return u.String()
		}
	}
	if a.SkimlinksID != "" && !strings.HasPrefix(link, skimlinksBase) {
		return skimlinksBase + "?id=" + url.QueryEscape(a.SkimlinksID) + "&url=" + url.QueryEscape(link)
	}
	return link
}
