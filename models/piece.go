package models

import "strings"

// Piece is one garment detected in the uploaded photo
type Piece struct {
	Category            string    `bson:"category" json:"category"`
	ShortTitle          string    `bson:"short_title" json:"short_title"`
	Color               string    `bson:"color" json:"color"`
	StyleType           string    `bson:"style_type" json:"style_type"`
	Brand               string    `bson:"brand" json:"brand"`
	VisibleText         string    `bson:"visible_text" json:"visible_text"`
	SearchQuerySpecific string    `bson:"search_query_specific" json:"search_query_specific"`
	SearchQueryGeneric  string    `bson:"search_query_generic" json:"search_query_generic"`
	Box2D               []float64 `bson:"box_2d" json:"box_2d"`     // [ymin, xmin, ymax, xmax], scale unknown
	CropThumbB64        string    `bson:"crop_thumb_b64" json:"-"` // <=128px JPEG preview
}

// KnownBrand returns the brand or "" when the detector could not read one.
func (p Piece) KnownBrand() string {
	b := strings.TrimSpace(p.Brand)
	switch strings.ToLower(b) {
	case "", "?", "none", "unknown", "yok":
		return ""
	}
	return b
}

// KnownText returns the OCR text or "" when nothing legible was reported.
func (p Piece) KnownText() string {
	t := strings.TrimSpace(p.VisibleText)
	switch strings.ToLower(t) {
	case "", "none", "?", "yok":
		return ""
	}
	return t
}
