package models

import "time"

// DetectSession keeps the result of /detect around so the UI can search piece by piece.
type DetectSession struct {
	DetectID     string         `bson:"_id" json:"detect_id"`
	Pieces       []Piece        `bson:"pieces" json:"pieces"`
	FullImageURL string         `bson:"full_image_url" json:"full_image_url"`
	CropData     map[int][]byte `bson:"-" json:"-"`
	CountryCode  string         `bson:"country_code" json:"country_code"`
	CreatedAt    time.Time      `bson:"created_at" json:"created_at"`

	// Filled lazily by the fan-out so repeated search-piece calls share them.
	CropURLs     map[int]string `bson:"-" json:"-"`
	FullExact    []Candidate    `bson:"full_exact,omitempty" json:"-"`
	FullExactRun bool           `bson:"full_exact_run" json:"-"`
}

// HasCrop reports whether piece i has usable crop bytes.
func (s *DetectSession) HasCrop(i int) bool {
	return len(s.CropData[i]) > 0
}
