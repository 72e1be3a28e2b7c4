package models

// Product is the cleaned, client-facing form of a Candidate
type Product struct {
	Title      string `json:"title"`
	Link       string `json:"link"`
	Source     string `json:"source"`
	Price      string `json:"price"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	Image      string `json:"image,omitempty"`
	Brand      string `json:"brand,omitempty"`
	IsLocal    bool   `json:"is_local"`
	AIVerified bool   `json:"ai_verified"`
	Verified   bool   `json:"verified,omitempty"`
	Sponsored  bool   `json:"sponsored,omitempty"`
}

// PieceResult is the per-piece payload returned by search-piece and the one-shot search.
type PieceResult struct {
	Index       int       `json:"index"`
	Category    string    `json:"category"`
	ShortTitle  string    `json:"short_title"`
	Brand       string    `json:"brand"`
	VisibleText string    `json:"visible_text"`
	Color       string    `json:"color"`
	StyleType   string    `json:"style_type"`
	Products    []Product `json:"products"`
	LensCount   int       `json:"lens_count"`
	MatchLevel  string    `json:"match_level"`
	CropImage   string    `json:"crop_image,omitempty"`
	Query       string    `json:"-"`
	Country     string    `json:"-"`
}
