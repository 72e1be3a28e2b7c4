package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/raushankrgupta/fitchy/cropper"
	"github.com/raushankrgupta/fitchy/models"
)

// PiecePreview is what /detect shows before any search runs.
type PiecePreview struct {
	Category    string `json:"category"`
	ShortTitle  string `json:"short_title"`
	Brand       string `json:"brand"`
	VisibleText string `json:"visible_text"`
	Color       string `json:"color"`
	StyleType   string `json:"style_type"`
	CropImage   string `json:"crop_image"`
	HasCrop     bool   `json:"has_crop"`
}

// DetectResult is the outcome of a detect run.
type DetectResult struct {
	DetectID string
	Country  string
	Pieces   []PiecePreview
	Session  *models.DetectSession
}

// NewDetectID returns a 12 character random id.
func NewDetectID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Detect finds the pieces of a photo, crops them and stores a session. The full image is
// uploaded while the detector runs so the exact-match search can start right away later.
// Detector and upload failures are logged and yield fewer results, never an error.
func (p *Pipeline) Detect(ctx context.Context, image []byte, mimeType, countryCode string) (*DetectResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	country := p.Country(countryCode)
	id := NewDetectID()

	var (
		pieces  []models.Piece
		fullURL string
	)
	var g errgroup.Group
	g.Go(func() error {
		if p.uploader == nil {
			return nil
		}
		u, err := p.uploader.Upload(ctx, image, id+"_full"+extensionFor(mimeType))
		if err != nil {
			log.Printf("[Pipeline] full image upload failed for %s: %v", id, err)
			return nil
		}
		fullURL = u
		return nil
	})
	g.Go(func() error {
		if p.detector == nil {
			pieces = []models.Piece{}
			return nil
		}
		start := time.Now()
		found, err := p.detector.Detect(ctx, image, mimeType, country)
		if err != nil {
			log.Printf("[Pipeline] detection failed for %s: %v", id, err)
		}
		log.Printf("[Pipeline] %s: %d pieces in %v", id, len(found), time.Since(start))
		pieces = found
		return nil
	})
	_ = g.Wait()

	sess := &models.DetectSession{
		DetectID:     id,
		Pieces:       pieces,
		FullImageURL: fullURL,
		CropData:     make(map[int][]byte),
		CountryCode:  country.Code,
	}
	previews := p.cropPieces(image, sess)

	if err := p.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return &DetectResult{DetectID: id, Country: country.Code, Pieces: previews, Session: sess}, nil
}

// cropPieces fills the session's crops and returns the previews. A piece whose box cannot
// be cropped keeps has_crop=false and is still searchable by query.
func (p *Pipeline) cropPieces(image []byte, sess *models.DetectSession) []PiecePreview {
	previews := make([]PiecePreview, len(sess.Pieces))
	decoded, err := cropper.Decode(image)
	if err != nil && len(sess.Pieces) > 0 {
		log.Printf("[Pipeline] %s: cannot decode image for cropping: %v", sess.DetectID, err)
	}
	for i := range sess.Pieces {
		piece := &sess.Pieces[i]
		previews[i] = PiecePreview{
			Category:    piece.Category,
			ShortTitle:  piece.ShortTitle,
			Brand:       piece.Brand,
			VisibleText: piece.VisibleText,
			Color:       piece.Color,
			StyleType:   piece.StyleType,
		}
		if decoded == nil {
			continue
		}
		crop, err := p.cropper.CropPiece(decoded, piece.Box2D)
		if err != nil {
			log.Printf("[Pipeline] %s: crop %d failed: %v", sess.DetectID, i, err)
			continue
		}
		sess.CropData[i] = crop.JPEG
		piece.CropThumbB64 = crop.Thumb
		previews[i].CropImage = dataURI(crop.Thumb)
		previews[i].HasCrop = true
	}
	return previews
}

func dataURI(b64 string) string {
	if b64 == "" {
		return ""
	}
	return "data:image/jpeg;base64," + b64
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
