package detector

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/policy"
)

// DefaultTimeout bounds one LLM call.
const DefaultTimeout = 60 * time.Second

// Detector turns a photo into an ordered list of whitelisted garment pieces.
type Detector struct {
	engine  Engine
	policy  *policy.Policy
	Timeout time.Duration
}

func New(engine Engine, p *policy.Policy) *Detector {
	return &Detector{engine: engine, policy: p, Timeout: DefaultTimeout}
}

// Detect asks the engine for pieces. Any failure yields an empty list together with the
// error so callers can log it and carry on without pieces.
func (d *Detector) Detect(ctx context.Context, image []byte, mimeType string, country policy.Country) ([]models.Piece, error) {
	if d.engine == nil {
		return []models.Piece{}, fmt.Errorf("no detection engine configured")
	}
	if len(image) == 0 {
		return []models.Piece{}, fmt.Errorf("empty image")
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	prompt := BuildPrompt(country, d.policy.Categories, d.policy.MaxPieces)
	start := time.Now()
	raw, err := d.engine.Generate(ctx, prompt, image, mimeType)
	if err != nil {
		return []models.Piece{}, fmt.Errorf("%s: %w", d.engine.Name(), err)
	}
	log.Printf("[Detector] %s answered in %v", d.engine.Name(), time.Since(start))

	pieces, err := ParsePieces(raw)
	if err != nil {
		return []models.Piece{}, err
	}
	return d.Filter(pieces), nil
}

// Filter drops non-whitelisted categories and keeps at most MaxPieces in the model's order.
func (d *Detector) Filter(pieces []models.Piece) []models.Piece {
	out := make([]models.Piece, 0, len(pieces))
	for _, p := range pieces {
		if !d.policy.IsAllowedCategory(p.Category) {
			continue
		}
		out = append(out, p)
		if len(out) == d.policy.MaxPieces {
			break
		}
	}
	return out
}
