package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/raushankrgupta/fitchy/cache"
	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/policy"
	"github.com/raushankrgupta/fitchy/search"
)

// pieceHits collects the raw results of one piece before filtering.
type pieceHits struct {
	lens  []models.Candidate // crop lens, exact and visual
	shop  []models.Candidate
	exact []models.Candidate // routed from the full image
	query string
	tag   string
}

// fanOut runs the shared full-image exact search plus one crop lens and one shopping call
// per requested piece, all concurrently under the search semaphore.
func (p *Pipeline) fanOut(ctx context.Context, sess *models.DetectSession, indices []int, country policy.Country) map[int]*pieceHits {
	hits := make(map[int]*pieceHits, len(indices))
	for _, i := range indices {
		q, tag := BuildQuery(p.policy, sess.Pieces[i])
		hits[i] = &pieceHits{query: q, tag: tag}
	}

	var (
		mu        sync.Mutex
		fullExact []models.Candidate
	)
	var g errgroup.Group

	g.Go(func() error {
		cands, err := p.fullExact(ctx, sess, country)
		if err != nil {
			log.Printf("[Pipeline] %s: full image lens failed: %v", sess.DetectID, err)
			return nil
		}
		mu.Lock()
		fullExact = cands
		mu.Unlock()
		return nil
	})

	for _, i := range indices {
		i := i
		h := hits[i]
		if sess.HasCrop(i) {
			g.Go(func() error {
				cands, err := p.cropLens(ctx, sess, i, country)
				if err != nil {
					log.Printf("[Pipeline] %s: piece %d lens failed: %v", sess.DetectID, i, err)
					return nil
				}
				mu.Lock()
				h.lens = cands
				mu.Unlock()
				return nil
			})
		}
		if h.query != "" {
			g.Go(func() error {
				cands, err := p.shopping(ctx, h.query, h.tag, country)
				if err != nil {
					log.Printf("[Pipeline] %s: piece %d shopping failed: %v", sess.DetectID, i, err)
					return nil
				}
				mu.Lock()
				h.shop = cands
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	routeExact(p.policy, sess.Pieces, indices, hits, fullExact)
	return hits
}

// fullExact returns the session's full-image exact matches, running the search at most
// once per session even when several search-piece calls race for it.
func (p *Pipeline) fullExact(ctx context.Context, sess *models.DetectSession, country policy.Country) ([]models.Candidate, error) {
	if sess.FullExactRun {
		return models.CloneCandidates(sess.FullExact), nil
	}
	if sess.FullImageURL == "" {
		return nil, nil
	}

	v, err, _ := p.group.Do("full:"+sess.DetectID, func() (interface{}, error) {
		// Another caller may have finished while this one waited for the session.
		if latest, err := p.sessions.Get(ctx, sess.DetectID); err == nil && latest.FullExactRun {
			return latest.FullExact, nil
		}

		var res *search.LensResult
		err := p.call(ctx, func(ctx context.Context) error {
			var err error
			res, err = p.searcher.Lens(ctx, sess.FullImageURL, search.LensExact, country)
			return err
		})
		if err != nil {
			return nil, err
		}

		var cands []models.Candidate
		if res != nil {
			cands = labelled(res.Exact, models.OriginFullLensExact, models.ChannelLens, true)
		}
		if err := p.sessions.SetFullExact(ctx, sess.DetectID, cands); err != nil {
			log.Printf("[Pipeline] %s: cannot memoise full exact: %v", sess.DetectID, err)
		}
		return cands, nil
	})
	if err != nil {
		return nil, err
	}
	cands, _ := v.([]models.Candidate)
	return models.CloneCandidates(cands), nil
}

// cropLens uploads the crop (once per session) and runs a Lens "all" search on it.
func (p *Pipeline) cropLens(ctx context.Context, sess *models.DetectSession, i int, country policy.Country) ([]models.Candidate, error) {
	u, err := p.cropURL(ctx, sess, i)
	if err != nil {
		return nil, err
	}

	var res *search.LensResult
	err = p.call(ctx, func(ctx context.Context) error {
		var err error
		res, err = p.searcher.Lens(ctx, u, search.LensAll, country)
		return err
	})
	if err != nil || res == nil {
		return nil, err
	}
	out := labelled(res.Exact, models.OriginPieceLens, models.ChannelLens, true)
	return append(out, labelled(res.Visual, models.OriginPieceLens, models.ChannelLens, false)...), nil
}

func (p *Pipeline) cropURL(ctx context.Context, sess *models.DetectSession, i int) (string, error) {
	if u := sess.CropURLs[i]; u != "" {
		return u, nil
	}
	if p.uploader == nil {
		return "", fmt.Errorf("no image host configured")
	}

	key := fmt.Sprintf("crop:%s:%d", sess.DetectID, i)
	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		u, err := p.uploader.Upload(ctx, sess.CropData[i], fmt.Sprintf("%s_%d.jpg", sess.DetectID, i))
		if err != nil {
			return "", err
		}
		if err := p.sessions.SetCropURL(ctx, sess.DetectID, i, u); err != nil {
			log.Printf("[Pipeline] %s: cannot memoise crop url: %v", sess.DetectID, err)
		}
		return u, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// shopping answers from the cache when it can; only successful calls are cached.
func (p *Pipeline) shopping(ctx context.Context, query, tag string, country policy.Country) ([]models.Candidate, error) {
	channel := models.ChannelShopGeneric
	if tag == QuerySpecific {
		channel = models.ChannelShopSpecific
	}

	key := cache.Key(country.Code, query)
	if cands, ok := p.cache.Get(ctx, key); ok {
		return labelled(cands, models.OriginShop, channel, false), nil
	}

	var cands []models.Candidate
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		cands, err = p.searcher.Shopping(ctx, query, country)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.cache.Set(ctx, key, cands)
	return labelled(cands, models.OriginShop, channel, false), nil
}

// routeExact hands every full-image exact match to one piece: the first piece whose
// category keywords appear in the title, otherwise the first searched piece that has
// not already seen the link. Matches that belong to a piece outside indices are dropped.
func routeExact(p *policy.Policy, pieces []models.Piece, indices []int, hits map[int]*pieceHits, exact []models.Candidate) {
	for _, c := range exact {
		target := -1
		cats := p.CategoriesIn(policy.NewText(c.Title))
		for i, piece := range pieces {
			if containsString(cats, piece.Category) {
				target = i
				break
			}
		}
		if target < 0 {
			for _, i := range indices {
				if !hits[i].has(c.Link) {
					target = i
					break
				}
			}
		}
		if h, ok := hits[target]; ok {
			h.exact = append(h.exact, c)
		}
	}
}

func (h *pieceHits) has(link string) bool {
	for _, list := range [][]models.Candidate{h.exact, h.lens, h.shop} {
		for _, c := range list {
			if c.Link == link {
				return true
			}
		}
	}
	return false
}

// all lists the piece's candidates, exact matches first so they win link de-duplication.
func (h *pieceHits) all() []models.Candidate {
	out := make([]models.Candidate, 0, len(h.exact)+len(h.lens)+len(h.shop))
	out = append(out, h.exact...)
	for _, c := range h.lens {
		if c.Exact {
			out = append(out, c)
		}
	}
	for _, c := range h.lens {
		if !c.Exact {
			out = append(out, c)
		}
	}
	return append(out, h.shop...)
}

func labelled(in []models.Candidate, origin, channel string, exact bool) []models.Candidate {
	out := models.CloneCandidates(in)
	for i := range out {
		out[i].Origin = origin
		out[i].Channel = channel
		out[i].Exact = exact
	}
	return out
}

func containsString(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}
