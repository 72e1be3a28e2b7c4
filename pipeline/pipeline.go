package pipeline

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/raushankrgupta/fitchy/cache"
	"github.com/raushankrgupta/fitchy/cropper"
	"github.com/raushankrgupta/fitchy/links"
	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/policy"
	"github.com/raushankrgupta/fitchy/ranking"
	"github.com/raushankrgupta/fitchy/search"
	"github.com/raushankrgupta/fitchy/session"
)

const (
	// SearchConcurrency caps in-flight search engine calls across all requests.
	SearchConcurrency = 6
	// MaxProducts is the number of products returned per piece or load-more page.
	MaxProducts = 8

	organicResults   = 20
	enrichTimeout    = 15 * time.Second
	enrichConcurrent = 4
)

var (
	ErrBadPiece   = errors.New("piece index out of range")
	ErrEmptyQuery = errors.New("query is empty")
)

// PieceDetector finds garments in a photo.
type PieceDetector interface {
	Detect(ctx context.Context, image []byte, mimeType string, country policy.Country) ([]models.Piece, error)
}

// Searcher is the reverse image and shopping search backend.
type Searcher interface {
	Configured() bool
	Lens(ctx context.Context, imageURL, lensType string, country policy.Country) (*search.LensResult, error)
	Shopping(ctx context.Context, query string, country policy.Country) ([]models.Candidate, error)
	Organic(ctx context.Context, query string, country policy.Country, num int) ([]models.Candidate, error)
}

// Uploader publishes image bytes at a URL the search backend can fetch.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
	UploadAll(ctx context.Context, crops map[int][]byte, prefix string) map[int]string
}

// Enricher fills missing thumbnails and prices from the product pages themselves.
type Enricher interface {
	Enrich(ctx context.Context, cand *models.Candidate) error
}

// Options wires the pipeline. Cache, Sessions, Enricher and ResolveLink are optional.
type Options struct {
	Policy         *policy.Policy
	Detector       PieceDetector
	Cropper        *cropper.Cropper
	Searcher       Searcher
	Uploader       Uploader
	Sessions       session.Store
	Cache          cache.Store
	Affiliate      links.Affiliate
	Enricher       Enricher
	ResolveLink    func(ctx context.Context, link string) (string, error)
	DefaultCountry string
}

// Pipeline runs detect, search-piece and load-more.
type Pipeline struct {
	policy         *policy.Policy
	detector       PieceDetector
	cropper        *cropper.Cropper
	searcher       Searcher
	uploader       Uploader
	sessions       session.Store
	cache          cache.Store
	ranker         *ranking.Ranker
	finisher       *links.Finisher
	enricher       Enricher
	resolveLink    func(ctx context.Context, link string) (string, error)
	defaultCountry string

	sem   *semaphore.Weighted
	group singleflight.Group
}

func New(opts Options) *Pipeline {
	p := &Pipeline{
		policy:         opts.Policy,
		detector:       opts.Detector,
		cropper:        opts.Cropper,
		searcher:       opts.Searcher,
		uploader:       opts.Uploader,
		sessions:       opts.Sessions,
		cache:          opts.Cache,
		enricher:       opts.Enricher,
		resolveLink:    opts.ResolveLink,
		defaultCountry: opts.DefaultCountry,
		sem:            semaphore.NewWeighted(SearchConcurrency),
	}
	if p.policy == nil {
		p.policy = policy.Default()
	}
	if p.cropper == nil {
		p.cropper = cropper.New()
	}
	if p.sessions == nil {
		p.sessions = session.NewMemory(session.DefaultMaxAge)
	}
	if p.cache == nil {
		p.cache = cache.NewMemory(cache.DefaultTTL, cache.DefaultCapacity)
	}
	p.ranker = ranking.New(p.policy)
	p.finisher = links.NewFinisher(p.policy, opts.Affiliate)
	return p
}

// Country resolves a requested country code against the configured default.
func (p *Pipeline) Country(code string) policy.Country {
	return p.policy.Country(p.policy.ResolveCountry(code, p.defaultCountry))
}

// call runs one search engine request under the shared semaphore.
func (p *Pipeline) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
