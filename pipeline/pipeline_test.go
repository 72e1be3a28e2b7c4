package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"testing"

	"github.com/raushankrgupta/fitchy/links"
	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/policy"
	"github.com/raushankrgupta/fitchy/search"
	"github.com/raushankrgupta/fitchy/session"
)

type fakeDetector struct {
	pieces []models.Piece
	err    error
}

func (f *fakeDetector) Detect(ctx context.Context, image []byte, mimeType string, country policy.Country) ([]models.Piece, error) {
	if f.err != nil {
		return []models.Piece{}, f.err
	}
	return append([]models.Piece(nil), f.pieces...), nil
}

type fakeSearcher struct {
	mu           sync.Mutex
	lensCalls    int
	lensTypes    []string
	shopCalls    int
	organicCalls int

	fullExact []models.Candidate
	cropLens  map[string]*search.LensResult // by uploaded filename suffix
	shop      map[string][]models.Candidate
	organic   []models.Candidate
	shopErr   error
}

func (f *fakeSearcher) Configured() bool { return true }

func (f *fakeSearcher) Lens(ctx context.Context, imageURL, lensType string, country policy.Country) (*search.LensResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lensCalls++
	f.lensTypes = append(f.lensTypes, lensType)
	if lensType == search.LensExact {
		return &search.LensResult{Exact: models.CloneCandidates(f.fullExact)}, nil
	}
	for suffix, res := range f.cropLens {
		if strings.HasSuffix(imageURL, suffix) {
			return res, nil
		}
	}
	return &search.LensResult{}, nil
}

func (f *fakeSearcher) Shopping(ctx context.Context, query string, country policy.Country) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shopCalls++
	if f.shopErr != nil {
		return nil, f.shopErr
	}
	return models.CloneCandidates(f.shop[query]), nil
}

func (f *fakeSearcher) Organic(ctx context.Context, query string, country policy.Country, num int) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.organicCalls++
	return models.CloneCandidates(f.organic), nil
}

func (f *fakeSearcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lensCalls + f.shopCalls + f.organicCalls
}

type fakeUploader struct {
	mu      sync.Mutex
	fail    bool
	uploads []string
}

func (f *fakeUploader) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("all image hosts failed")
	}
	f.uploads = append(f.uploads, filename)
	return "https://files.example/" + filename, nil
}

func (f *fakeUploader) UploadAll(ctx context.Context, crops map[int][]byte, prefix string) map[int]string {
	out := make(map[int]string)
	for i, data := range crops {
		if u, err := f.Upload(ctx, data, fmt.Sprintf("%s_%d.jpg", prefix, i)); err == nil {
			out[i] = u
		}
	}
	return out
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1000, 1000))
	for y := 0; y < 1000; y++ {
		for x := 0; x < 1000; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func outfitPieces() []models.Piece {
	return []models.Piece{
		{
			Category: "jacket", ShortTitle: "Yeşil bomber ceket", Color: "yeşil", StyleType: "bomber",
			Brand: "?", VisibleText: "none",
			SearchQuerySpecific: "yeşil bomber ceket", SearchQueryGeneric: "bomber ceket",
			Box2D: []float64{100, 200, 600, 800},
		},
		{
			Category: "bottom", ShortTitle: "Mavi kot pantolon", Color: "mavi", StyleType: "jeans",
			Brand: "?", VisibleText: "",
			SearchQuerySpecific: "mavi kot pantolon", SearchQueryGeneric: "kot pantolon",
			Box2D: []float64{550, 250, 950, 750},
		},
	}
}

func outfitSearcher() *fakeSearcher {
	return &fakeSearcher{
		fullExact: []models.Candidate{
			{Title: "Kot pantolon mavi", Link: "https://www.trendyol.com/mavi/jean-p-2001", Source: "Trendyol"},
		},
		cropLens: map[string]*search.LensResult{
			"_0.jpg": {Visual: []models.Candidate{
				{Title: "Green bomber jacket", Link: "https://www.asos.com/prd/555", Source: "ASOS"},
			}},
		},
		shop: map[string][]models.Candidate{
			"yeşil bomber ceket": {
				{Title: "Erkek Yeşil Bomber Ceket", Link: "https://www.trendyol.com/koton/bomber-ceket-p-1001", Source: "Trendyol", Price: "899 TL"},
				{Title: "Haki bomber ceket", Link: "https://www.trendyol.com/lcw/bomber-ceket-p-1002", Source: "Trendyol"},
				{Title: "Bomber ceket kombin önerileri", Link: "https://www.pinterest.com/pin/1", Source: "Pinterest"},
			},
			"mavi kot pantolon": {
				{Title: "Mavi Kot Pantolon", Link: "https://www.trendyol.com/mavi/kot-p-3001", Source: "Trendyol", Price: "650 TL"},
			},
		},
	}
}

func newTestPipeline(s *fakeSearcher, u *fakeUploader, d *fakeDetector) *Pipeline {
	return New(Options{
		Policy:         policy.Default(),
		Detector:       d,
		Searcher:       s,
		Uploader:       u,
		Sessions:       session.NewMemory(0),
		DefaultCountry: "us",
	})
}

func TestDetectThenSearchPiece(t *testing.T) {
	ctx := context.Background()
	searcher := outfitSearcher()
	uploader := &fakeUploader{}
	p := newTestPipeline(searcher, uploader, &fakeDetector{pieces: outfitPieces()})

	det, err := p.Detect(ctx, testJPEG(t), "image/jpeg", "tr")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(det.DetectID) != 12 || det.Country != "tr" {
		t.Fatalf("unexpected detect result: %q %q", det.DetectID, det.Country)
	}
	if len(det.Pieces) != 2 || det.Pieces[0].Category != "jacket" || det.Pieces[1].Category != "bottom" {
		t.Fatalf("pieces = %+v", det.Pieces)
	}
	for i, pv := range det.Pieces {
		if !pv.HasCrop || !strings.HasPrefix(pv.CropImage, "data:image/jpeg;base64,") {
			t.Errorf("piece %d has no crop preview", i)
		}
	}
	if searcher.calls() != 0 {
		t.Errorf("detect must not search, got %d calls", searcher.calls())
	}

	res, err := p.SearchPiece(ctx, det.DetectID, 0, "tr")
	if err != nil {
		t.Fatalf("SearchPiece: %v", err)
	}
	if len(res.Products) == 0 {
		t.Fatal("no products for the jacket")
	}
	if !strings.Contains(policy.Lower(res.Products[0].Title), "ceket") {
		t.Errorf("top product = %q, want a ceket", res.Products[0].Title)
	}
	if res.MatchLevel != "exact" && res.MatchLevel != "close" {
		t.Errorf("match level = %q", res.MatchLevel)
	}
	if res.Query != "yeşil bomber ceket" {
		t.Errorf("query = %q", res.Query)
	}
	for _, prod := range res.Products {
		if strings.Contains(prod.Link, "pinterest") {
			t.Errorf("blocked link returned: %s", prod.Link)
		}
		if strings.Contains(prod.Link, "jean-p-2001") {
			t.Error("the jeans exact match was routed to the jacket")
		}
	}

	bottom, err := p.SearchPiece(ctx, det.DetectID, 1, "tr")
	if err != nil {
		t.Fatalf("SearchPiece(1): %v", err)
	}
	if len(bottom.Products) == 0 || bottom.Products[0].Link != "https://www.trendyol.com/mavi/jean-p-2001" {
		t.Errorf("routed exact match should lead the bottom piece: %+v", bottom.Products)
	}
	if bottom.MatchLevel != "exact" {
		t.Errorf("bottom match level = %q, want exact", bottom.MatchLevel)
	}

	if got, max := searcher.calls(), 1+2*len(det.Pieces); got > max {
		t.Errorf("%d search calls, want at most %d", got, max)
	}
	if searcher.lensTypes[0] != search.LensExact && searcher.lensTypes[1] != search.LensExact && searcher.lensTypes[2] != search.LensExact {
		t.Errorf("no full image exact search: %v", searcher.lensTypes)
	}
	if res.Country != "tr" {
		t.Errorf("result country = %q", res.Country)
	}

	// No requested country falls back to the session's, not the default.
	again, err := p.SearchPiece(ctx, det.DetectID, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if again.Country != "tr" {
		t.Errorf("country without request code = %q, want tr", again.Country)
	}
}

func TestRepeatedSearchUsesMemoAndCache(t *testing.T) {
	ctx := context.Background()
	searcher := outfitSearcher()
	p := newTestPipeline(searcher, &fakeUploader{}, &fakeDetector{pieces: outfitPieces()})
	det, err := p.Detect(ctx, testJPEG(t), "image/jpeg", "tr")
	if err != nil {
		t.Fatal(err)
	}

	first, err := p.SearchPiece(ctx, det.DetectID, 0, "tr")
	if err != nil {
		t.Fatal(err)
	}
	shopBefore, lensBefore := searcher.shopCalls, searcher.lensCalls

	second, err := p.SearchPiece(ctx, det.DetectID, 0, "tr")
	if err != nil {
		t.Fatal(err)
	}
	if searcher.shopCalls != shopBefore {
		t.Errorf("shopping should be served from the cache, calls %d -> %d", shopBefore, searcher.shopCalls)
	}
	if searcher.lensCalls != lensBefore+1 {
		t.Errorf("only the crop lens should run again, lens calls %d -> %d", lensBefore, searcher.lensCalls)
	}
	if len(first.Products) != len(second.Products) || first.Products[0].Link != second.Products[0].Link {
		t.Errorf("cached run changed the result: %+v vs %+v", first.Products, second.Products)
	}
}

func TestSearchPieceExpiredSession(t *testing.T) {
	searcher := outfitSearcher()
	p := newTestPipeline(searcher, &fakeUploader{}, &fakeDetector{})

	_, err := p.SearchPiece(context.Background(), "doesnotexist", 0, "tr")
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("err = %v, want session.ErrNotFound", err)
	}
	if searcher.calls() != 0 {
		t.Errorf("expired session issued %d calls", searcher.calls())
	}
}

func TestSearchPieceBadIndex(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(outfitSearcher(), &fakeUploader{}, &fakeDetector{pieces: outfitPieces()})
	det, _ := p.Detect(ctx, testJPEG(t), "image/jpeg", "tr")
	if _, err := p.SearchPiece(ctx, det.DetectID, 5, "tr"); !errors.Is(err, ErrBadPiece) {
		t.Errorf("err = %v, want ErrBadPiece", err)
	}
}

func TestUploadFailureKeepsShopping(t *testing.T) {
	ctx := context.Background()
	searcher := outfitSearcher()
	p := newTestPipeline(searcher, &fakeUploader{fail: true}, &fakeDetector{pieces: outfitPieces()})
	det, err := p.Detect(ctx, testJPEG(t), "image/jpeg", "tr")
	if err != nil {
		t.Fatal(err)
	}
	if det.Session.FullImageURL != "" {
		t.Errorf("full image url = %q", det.Session.FullImageURL)
	}

	res, err := p.SearchPiece(ctx, det.DetectID, 0, "tr")
	if err != nil {
		t.Fatal(err)
	}
	if searcher.lensCalls != 0 || searcher.shopCalls != 1 {
		t.Errorf("lens=%d shop=%d, want 0 and 1", searcher.lensCalls, searcher.shopCalls)
	}
	if len(res.Products) == 0 {
		t.Error("shopping results should still be returned")
	}
}

func TestDetectorFailureYieldsEmptySession(t *testing.T) {
	p := newTestPipeline(outfitSearcher(), &fakeUploader{}, &fakeDetector{err: errors.New("model overloaded")})
	det, err := p.Detect(context.Background(), testJPEG(t), "image/jpeg", "")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(det.Pieces) != 0 || det.Country != "us" {
		t.Errorf("got %d pieces, country %q", len(det.Pieces), det.Country)
	}
}

func TestSearchAll(t *testing.T) {
	ctx := context.Background()
	searcher := outfitSearcher()
	uploader := &fakeUploader{}
	p := newTestPipeline(searcher, uploader, &fakeDetector{pieces: outfitPieces()})
	det, err := p.Detect(ctx, testJPEG(t), "image/jpeg", "tr")
	if err != nil {
		t.Fatal(err)
	}

	results, err := p.SearchAll(ctx, det.Session, "tr")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if got, max := searcher.calls(), 1+2*2; got > max {
		t.Errorf("%d search calls, want at most %d", got, max)
	}
	if len(uploader.uploads) != 3 {
		t.Errorf("uploads = %v, want full image plus two crops", uploader.uploads)
	}
	if results[1].Products[0].Link != "https://www.trendyol.com/mavi/jean-p-2001" {
		t.Errorf("bottom top product = %s", results[1].Products[0].Link)
	}
}

func TestRouteExactFallsBackToUnseenPiece(t *testing.T) {
	pieces := []models.Piece{{Category: "jacket"}, {Category: "bottom"}}
	link := "https://shop.example/p/42"
	hits := map[int]*pieceHits{
		0: {shop: []models.Candidate{{Link: link}}},
		1: {},
	}
	exact := []models.Candidate{{Title: "Spring collection 2026", Link: link, Exact: true}}

	routeExact(policy.Default(), pieces, []int{0, 1}, hits, exact)
	if len(hits[0].exact) != 0 || len(hits[1].exact) != 1 {
		t.Errorf("piece 0 already saw the link; got %d/%d", len(hits[0].exact), len(hits[1].exact))
	}
}

func TestLoadMore(t *testing.T) {
	searcher := &fakeSearcher{organic: []models.Candidate{
		{Title: "Yeşil bomber ceket", Link: "https://www.trendyol.com/koton/bomber-ceket-p-1001", Source: "trendyol.com"},
		{Title: "Bomber ceket", Link: "https://ty.gl/abc", Source: "ty.gl"},
		{Title: "Bomber jacket", Link: "https://www.asos.com/prd/77", Source: "asos.com"},
		{Title: "Bomber ceket modelleri", Link: "https://www.instagram.com/p/xyz", Source: "instagram.com"},
	}}
	p := New(Options{
		Policy:   policy.Default(),
		Searcher: searcher,
		ResolveLink: func(ctx context.Context, link string) (string, error) {
			return "https://www.trendyol.com/lcw/bomber-p-9009", nil
		},
		Enricher: enricherFunc(func(ctx context.Context, c *models.Candidate) error {
			c.Thumbnail = "https://cdn.example/" + c.Source + ".jpg"
			return nil
		}),
	})

	products, err := p.LoadMore(context.Background(), "yeşil bomber ceket", "tr", []string{"https://www.trendyol.com/koton/bomber-ceket-p-1001"})
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products: %+v", len(products), products)
	}
	if products[0].Link != "https://www.trendyol.com/lcw/bomber-p-9009" || !products[0].IsLocal {
		t.Errorf("resolved local link should lead: %+v", products[0])
	}
	if products[1].Link != "https://www.asos.com/prd/77" {
		t.Errorf("second product = %s", products[1].Link)
	}
	for _, prod := range products {
		if prod.Thumbnail == "" {
			t.Errorf("%s was not enriched", prod.Link)
		}
	}
	if searcher.organicCalls != 1 {
		t.Errorf("organic calls = %d", searcher.organicCalls)
	}

	if _, err := p.LoadMore(context.Background(), "  ", "tr", nil); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestLoadMoreExcludesShownLinks(t *testing.T) {
	organic := []models.Candidate{
		{Title: "Bomber jacket", Link: "https://www.asos.com/prd/77", Source: "asos.com"},
		{Title: "Bomber ceket", Link: "https://www.bershka.com/de/product/12345", Source: "Bershka"},
	}
	tests := []struct {
		name      string
		affiliate links.Affiliate
	}{
		{"localised only", links.Affiliate{}},
		{"skimlinks", links.Affiliate{SkimlinksID: "123X"}},
		{"trendyol partner", links.Affiliate{TrendyolPartnerID: "777", SkimlinksID: "123X"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Options{
				Policy:    policy.Default(),
				Searcher:  &fakeSearcher{organic: organic},
				Affiliate: tt.affiliate,
			})
			ctx := context.Background()

			first, err := p.LoadMore(ctx, "bomber ceket", "tr", nil)
			if err != nil {
				t.Fatal(err)
			}
			if len(first) != 2 {
				t.Fatalf("first page = %+v", first)
			}
			shown := make([]string, 0, len(first))
			for _, prod := range first {
				if prod.Link == "https://www.bershka.com/de/product/12345" {
					t.Errorf("bershka link was not localised: %s", prod.Link)
				}
				shown = append(shown, prod.Link)
			}

			second, err := p.LoadMore(ctx, "bomber ceket", "tr", shown)
			if err != nil {
				t.Fatal(err)
			}
			if len(second) != 0 {
				t.Errorf("shown links returned again: %+v", second)
			}

			partial, err := p.LoadMore(ctx, "bomber ceket", "tr", shown[:1])
			if err != nil {
				t.Fatal(err)
			}
			if len(partial) != 1 || partial[0].Link != first[1].Link {
				t.Errorf("partial exclude = %+v, want only %s", partial, first[1].Link)
			}
		})
	}
}

type enricherFunc func(ctx context.Context, c *models.Candidate) error

func (f enricherFunc) Enrich(ctx context.Context, c *models.Candidate) error { return f(ctx, c) }

func TestSearchNotConfigured(t *testing.T) {
	p := New(Options{Policy: policy.Default()})
	if _, err := p.LoadMore(context.Background(), "ceket", "tr", nil); !errors.Is(err, search.ErrNoAPIKey) {
		t.Errorf("err = %v, want search.ErrNoAPIKey", err)
	}
}
