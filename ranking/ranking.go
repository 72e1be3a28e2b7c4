package ranking

import (
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/raushankrgupta/fitchy/filters"
	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/policy"
)

// Score deltas.
const (
	ScoreExact            = 50
	ScoreCrossChannel     = 25
	ScoreBrand            = 8
	ScoreVisibleText      = 10
	ScorePrice            = 2
	ScoreLocal            = 15
	ScoreBaseLens         = 18
	ScoreBaseShopSpecific = 15
	ScoreBaseShopGeneric  = 5
	ScoreTargetKeyword    = 15

	PenaltyColor            = -30
	PenaltySubtype          = -25
	PenaltyAccessoryNoMatch = -20
	PenaltyNotProduct       = -40
)

// Match levels.
const (
	MatchExact   = "exact"
	MatchClose   = "close"
	MatchSimilar = "similar"
)

// Ranker scores and orders the filtered candidates of one piece.
type Ranker struct {
	policy *policy.Policy
}

func New(p *policy.Policy) *Ranker {
	return &Ranker{policy: p}
}

// Rank scores cands in place, orders them and returns the match level of the result.
// cross holds normalised links seen in both the lens and the shopping channel.
func (r *Ranker) Rank(piece models.Piece, country policy.Country, cands []models.Candidate, cross map[string]bool) ([]models.Candidate, string) {
	for i := range cands {
		r.score(piece, country, &cands[i], cross)
	}
	ordered := Order(cands)
	return ordered, MatchLevel(ordered)
}

func (r *Ranker) score(piece models.Piece, country policy.Country, c *models.Candidate, cross map[string]bool) {
	s := 0
	title := policy.NewText(c.Title)
	haystack := policy.Lower(c.Title + " " + c.Link + " " + c.Source)

	if c.Exact {
		s += ScoreExact
	}
	c.AIVerified = c.Exact
	if cross[NormalizeLink(c.Link)] {
		s += ScoreCrossChannel
		c.AIVerified = true
	}

	c.BrandHit = false
	if brand := piece.KnownBrand(); brand != "" && brandIn(haystack, brand) {
		s += ScoreBrand
		c.BrandHit = true
	}
	c.TextHit = false
	for _, tok := range r.textTokens(piece.KnownText()) {
		if strings.Contains(haystack, tok) {
			s += ScoreVisibleText
			c.TextHit = true
			break
		}
	}

	if strings.TrimSpace(c.Price) != "" {
		s += ScorePrice
	}
	c.IsLocal = country.IsLocal(c.Link, c.Source)
	if c.IsLocal {
		s += ScoreLocal
	}

	switch c.Channel {
	case models.ChannelLens:
		s += ScoreBaseLens
	case models.ChannelShopSpecific:
		s += ScoreBaseShopSpecific
	case models.ChannelShopGeneric:
		s += ScoreBaseShopGeneric
	}

	if r.colorConflict(piece, title) {
		s += PenaltyColor
	}
	if r.subtypeConflict(piece, title) {
		s += PenaltySubtype
	}

	if title.HasAny(r.policy.CategoryKeywords[piece.Category]) {
		s += ScoreTargetKeyword
	} else if r.policy.IsAccessory(piece.Category) {
		s += PenaltyAccessoryNoMatch
	}

	if !filters.IsProductURL(r.policy, c.Link) {
		s += PenaltyNotProduct
	}
	c.Score = s
}

// colorConflict reports a title naming a clashing color and none of the piece's own colors.
func (r *Ranker) colorConflict(piece models.Piece, title policy.Text) bool {
	own := r.policy.ColorsIn(policy.NewText(piece.Color))
	if len(own) == 0 {
		return false
	}
	mentioned := r.policy.ColorsIn(title)
	for _, m := range mentioned {
		if containsString(own, m) {
			return false
		}
	}
	for _, o := range own {
		for _, m := range mentioned {
			if containsString(r.policy.ColorConflicts[o], m) {
				return true
			}
		}
	}
	return false
}

// subtypeConflict reports a title naming only other garment forms of the piece's category.
func (r *Ranker) subtypeConflict(piece models.Piece, title policy.Text) bool {
	own := r.policy.SubtypesIn(piece.Category, policy.NewText(piece.StyleType+" "+piece.ShortTitle))
	if len(own) == 0 {
		return false
	}
	mentioned := r.policy.SubtypesIn(piece.Category, title)
	if len(mentioned) == 0 {
		return false
	}
	for _, m := range mentioned {
		if containsString(own, m) {
			return false
		}
	}
	return true
}

func (r *Ranker) textTokens(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Fields(policy.Lower(text)) {
		tok := strings.TrimFunc(f, func(ch rune) bool { return !unicode.IsLetter(ch) && !unicode.IsDigit(ch) })
		if len([]rune(tok)) > 2 && !r.policy.IsStopword(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// Order sorts exact first then by score, and partitions local before foreign keeping
// exact first within each group. Ties keep input order.
func Order(cands []models.Candidate) []models.Candidate {
	sorted := make([]models.Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Exact != sorted[j].Exact {
			return sorted[i].Exact
		}
		return sorted[i].Score > sorted[j].Score
	})

	out := make([]models.Candidate, 0, len(sorted))
	for _, local := range []bool{true, false} {
		for _, c := range sorted {
			if c.IsLocal == local {
				out = append(out, c)
			}
		}
	}
	return out
}

// MatchLevel buckets the confidence of an ordered list.
func MatchLevel(ordered []models.Candidate) string {
	if len(ordered) == 0 {
		return MatchSimilar
	}
	top := ordered[0].Score
	for _, c := range ordered {
		if c.Score > top {
			top = c.Score
		}
	}

	for i, c := range ordered {
		if i < 5 && c.Exact {
			return MatchExact
		}
	}
	if top >= ScoreExact {
		return MatchExact
	}
	for i := 0; i < len(ordered) && i < 3; i++ {
		c := ordered[i]
		if c.AIVerified && top >= ScoreCrossChannel && (c.BrandHit || c.TextHit) {
			return MatchExact
		}
	}

	if top >= 15 {
		return MatchClose
	}
	for i := 0; i < len(ordered) && i < 3; i++ {
		if ordered[i].BrandHit {
			return MatchClose
		}
	}
	return MatchSimilar
}

// LensCount counts products that came from a Lens channel.
func LensCount(cands []models.Candidate) int {
	n := 0
	for _, c := range cands {
		if c.Origin == models.OriginPieceLens || c.Origin == models.OriginFullLensExact {
			n++
		}
	}
	return n
}

// CrossChannel returns the normalised links present in both lens and shopping results.
func CrossChannel(lens, shop []models.Candidate) map[string]bool {
	inLens := make(map[string]bool, len(lens))
	for _, c := range lens {
		inLens[NormalizeLink(c.Link)] = true
	}
	both := make(map[string]bool)
	for _, c := range shop {
		if k := NormalizeLink(c.Link); inLens[k] {
			both[k] = true
		}
	}
	return both
}

// NormalizeLink reduces a URL to host and path so tracking parameters do not hide a match.
func NormalizeLink(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(link)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host + strings.TrimSuffix(u.Path, "/")
}

func brandIn(haystack, brand string) bool {
	b := policy.Lower(strings.TrimSpace(brand))
	if b == "" {
		return false
	}
	if strings.Contains(haystack, b) {
		return true
	}
	return strings.Contains(haystack, strings.ReplaceAll(b, " ", "-")) ||
		strings.Contains(haystack, strings.ReplaceAll(b, " ", ""))
}

func containsString(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}
