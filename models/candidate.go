package models

// Origin labels tell the fan-out which channel produced a result.
const (
	OriginFullLensExact = "full_lens_exact"
	OriginPieceLens     = "piece_lens"
	OriginShop          = "shop"
	OriginOrganic       = "organic"
)

// Channel is the scoring base a candidate entered the ranker with.
const (
	ChannelLens         = "lens"
	ChannelShopSpecific = "shop_specific"
	ChannelShopGeneric  = "shop_generic"
	ChannelOrganic      = "organic"
)

// Candidate is one raw product result flowing through filtering, scoring and cleaning.
// Fields tagged json:"-" are scratch state and never reach a client.
type Candidate struct {
	Title     string `bson:"title" json:"title"`
	Link      string `bson:"link" json:"link"`
	Source    string `bson:"source" json:"source"`
	Price     string `bson:"price" json:"price"`
	Thumbnail string `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Image     string `bson:"image,omitempty" json:"image,omitempty"`
	Brand     string `bson:"brand,omitempty" json:"brand,omitempty"`

	IsLocal    bool `bson:"-" json:"-"`
	AIVerified bool `bson:"-" json:"-"`

	Exact    bool   `bson:"exact" json:"-"`
	Origin   string `bson:"origin" json:"-"`
	Channel  string `bson:"channel" json:"-"`
	Score    int    `bson:"-" json:"-"`
	BrandHit bool   `bson:"-" json:"-"`
	TextHit  bool   `bson:"-" json:"-"`
}

// CloneCandidates returns a deep copy so cached lists are never mutated by callers.
func CloneCandidates(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	copy(out, in)
	return out
}
