package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/policy"
)

// ErrNoAPIKey is returned by every call when SERPAPI_KEY is missing.
var ErrNoAPIKey = errors.New("search: SERPAPI_KEY is not set")

const (
	DefaultEndpoint = "https://serpapi.com/search.json"
	DefaultTimeout  = 30 * time.Second

	LensAll   = "all"
	LensExact = "exact_matches"
)

// Client calls SerpAPI's Google Lens, Google Shopping and Google web engines
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
}

// WithEndpoint points the client at another base URL, e.g. an httptest server.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// LensResult splits a Lens answer by match kind.
type LensResult struct {
	Exact  []models.Candidate
	Visual []models.Candidate
}

// Lens runs a reverse image search on a public image URL.
func (c *Client) Lens(ctx context.Context, imageURL, lensType string, country policy.Country) (*LensResult, error) {
	params := url.Values{}
	params.Set("engine", "google_lens")
	params.Set("url", imageURL)
	if lensType != "" {
		params.Set("type", lensType)
	}
	params.Set("hl", country.HL)
	params.Set("country", country.GL)

	var body struct {
		ExactMatches  []rawResult `json:"exact_matches"`
		VisualMatches []rawResult `json:"visual_matches"`
	}
	if err := c.get(ctx, params, &body); err != nil {
		return nil, err
	}

	res := &LensResult{}
	for _, r := range body.ExactMatches {
		if cand, ok := r.candidate(); ok {
			cand.Exact = true
			res.Exact = append(res.Exact, cand)
		}
	}
	for _, r := range body.VisualMatches {
		if cand, ok := r.candidate(); ok {
			res.Visual = append(res.Visual, cand)
		}
	}
	return res, nil
}

// Shopping runs a Google Shopping query localised to country.
func (c *Client) Shopping(ctx context.Context, query string, country policy.Country) ([]models.Candidate, error) {
	params := url.Values{}
	params.Set("engine", "google_shopping")
	params.Set("q", query)
	params.Set("gl", country.GL)
	params.Set("hl", country.HL)

	var body struct {
		ShoppingResults []rawResult `json:"shopping_results"`
	}
	if err := c.get(ctx, params, &body); err != nil {
		return nil, err
	}
	return collect(body.ShoppingResults), nil
}

// Organic runs a plain Google web search, used by load-more.
func (c *Client) Organic(ctx context.Context, query string, country policy.Country, num int) ([]models.Candidate, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("gl", country.GL)
	params.Set("hl", country.HL)
	if num > 0 {
		params.Set("num", fmt.Sprint(num))
	}

	var body struct {
		OrganicResults []rawResult `json:"organic_results"`
	}
	if err := c.get(ctx, params, &body); err != nil {
		return nil, err
	}
	return collect(body.OrganicResults), nil
}

func (c *Client) get(ctx context.Context, params url.Values, out interface{}) error {
	if !c.Configured() {
		return ErrNoAPIKey
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", params.Get("engine"), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", params.Get("engine"), err)
	}

	var envelope struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error != "" {
		// SerpAPI reports an empty result page as an error string.
		if strings.Contains(strings.ToLower(envelope.Error), "hasn't returned any results") {
			return nil
		}
		return fmt.Errorf("%s error: %s", params.Get("engine"), envelope.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s status code error: %d", params.Get("engine"), resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", params.Get("engine"), err)
	}
	return nil
}

func collect(raw []rawResult) []models.Candidate {
	out := make([]models.Candidate, 0, len(raw))
	for _, r := range raw {
		if cand, ok := r.candidate(); ok {
			out = append(out, cand)
		}
	}
	return out
}
