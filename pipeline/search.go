package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/raushankrgupta/fitchy/filters"
	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/policy"
	"github.com/raushankrgupta/fitchy/ranking"
	"github.com/raushankrgupta/fitchy/search"
)

// SearchPiece runs the search fan-out for one piece of a stored session. It fails with
// session.ErrNotFound for unknown or expired sessions and search.ErrNoAPIKey when no
// search backend is configured; neither case issues an external call.
func (p *Pipeline) SearchPiece(ctx context.Context, detectID string, index int, countryCode string) (*models.PieceResult, error) {
	sess, err := p.sessions.Get(ctx, detectID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(sess.Pieces) {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadPiece, index, len(sess.Pieces))
	}
	if !p.searchConfigured() {
		return nil, search.ErrNoAPIKey
	}

	country := p.policy.Country(p.policy.ResolveCountry(countryCode, sess.CountryCode))
	hits := p.fanOut(ctx, sess, []int{index}, country)
	res := p.assemble(sess, index, hits[index], country)
	return &res, nil
}

// SearchAll runs the fan-out for every piece of a session in one go.
func (p *Pipeline) SearchAll(ctx context.Context, sess *models.DetectSession, countryCode string) ([]models.PieceResult, error) {
	if !p.searchConfigured() {
		return nil, search.ErrNoAPIKey
	}
	country := p.policy.Country(p.policy.ResolveCountry(countryCode, sess.CountryCode))

	indices := make([]int, len(sess.Pieces))
	for i := range sess.Pieces {
		indices[i] = i
	}
	p.prefetchCrops(ctx, sess)

	hits := p.fanOut(ctx, sess, indices, country)
	results := make([]models.PieceResult, 0, len(indices))
	for _, i := range indices {
		results = append(results, p.assemble(sess, i, hits[i], country))
	}
	return results, nil
}

// prefetchCrops uploads every crop that has no public URL yet.
func (p *Pipeline) prefetchCrops(ctx context.Context, sess *models.DetectSession) {
	if p.uploader == nil {
		return
	}
	missing := make(map[int][]byte)
	for i, data := range sess.CropData {
		if sess.CropURLs[i] == "" && len(data) > 0 {
			missing[i] = data
		}
	}
	if len(missing) == 0 {
		return
	}
	if sess.CropURLs == nil {
		sess.CropURLs = make(map[int]string)
	}
	for i, u := range p.uploader.UploadAll(ctx, missing, sess.DetectID) {
		sess.CropURLs[i] = u
		if err := p.sessions.SetCropURL(ctx, sess.DetectID, i, u); err != nil {
			log.Printf("[Pipeline] %s: cannot memoise crop url: %v", sess.DetectID, err)
		}
	}
}

// assemble filters, ranks and cleans one piece's raw results.
func (p *Pipeline) assemble(sess *models.DetectSession, index int, h *pieceHits, country policy.Country) models.PieceResult {
	piece := sess.Pieces[index]
	chain := filters.New(p.policy, country.Code, piece.Category)
	accepted := chain.Apply(h.all())

	lensSide := append(models.CloneCandidates(h.exact), h.lens...)
	cross := ranking.CrossChannel(lensSide, h.shop)
	ranked, level := p.ranker.Rank(piece, country, accepted, cross)

	if len(chain.Rejected) > 0 {
		log.Printf("[Pipeline] %s: piece %d kept %d of %d (%s)", sess.DetectID, index, len(accepted), len(h.all()), rejectedSummary(chain.Rejected))
	}

	return models.PieceResult{
		Index:       index,
		Category:    piece.Category,
		ShortTitle:  piece.ShortTitle,
		Brand:       piece.Brand,
		VisibleText: piece.VisibleText,
		Color:       piece.Color,
		StyleType:   piece.StyleType,
		Products:    p.finisher.Finish(ranked, country, MaxProducts),
		LensCount:   ranking.LensCount(ranked),
		MatchLevel:  level,
		CropImage:   dataURI(piece.CropThumbB64),
		Query:       h.query,
		Country:     country.Code,
	}
}

func (p *Pipeline) searchConfigured() bool {
	return p.searcher != nil && p.searcher.Configured()
}

func rejectedSummary(rejected map[filters.Reason]int) string {
	reasons := make([]string, 0, len(rejected))
	for r := range rejected {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	s := ""
	for i, r := range reasons {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%d", r, rejected[filters.Reason(r)])
	}
	return s
}
