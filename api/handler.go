package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/raushankrgupta/fitchy/pipeline"
	"github.com/raushankrgupta/fitchy/search"
	"github.com/raushankrgupta/fitchy/session"
	"github.com/raushankrgupta/fitchy/utils"
)

const (
	msgSessionExpired = "Session expired. Please rescan."
	msgNotConfigured  = "Search service is not configured"
)

// Handler serves the visual search endpoints.
type Handler struct {
	Pipeline *pipeline.Pipeline
}

func NewHandler(p *pipeline.Pipeline) *Handler {
	return &Handler{Pipeline: p}
}

// Register mounts every endpoint on mux, wrapping each handler with wrap.
func (h *Handler) Register(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/detect", wrap(h.DetectHandler))
	mux.HandleFunc("/search-piece", wrap(h.SearchPieceHandler))
	mux.HandleFunc("/load-more", wrap(h.LoadMoreHandler))
	mux.HandleFunc("/search", wrap(h.SearchHandler))
	mux.HandleFunc("/healthz", HealthHandler)
}

// HealthHandler answers liveness probes.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// requestFields reads parameters from a JSON body or from form values.
type requestFields struct {
	DetectID   string          `json:"detect_id"`
	PieceIndex json.RawMessage `json:"piece_index"`
	Country    string          `json:"country"`
	Query      string          `json:"query"`
	Exclude    json.RawMessage `json:"exclude"`
}

func readFields(r *http.Request) (*requestFields, error) {
	f := &requestFields{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(f); err != nil {
			return nil, err
		}
		return f, nil
	}
	f.DetectID = r.FormValue("detect_id")
	if v := r.FormValue("piece_index"); v != "" {
		f.PieceIndex = json.RawMessage(strconv.Quote(v))
	}
	f.Country = r.FormValue("country")
	f.Query = r.FormValue("query")
	if v := r.FormValue("exclude"); v != "" {
		f.Exclude = json.RawMessage(v)
	}
	return f, nil
}

// pieceIndex accepts 2 or "2".
func (f *requestFields) pieceIndex() (int, error) {
	raw := strings.Trim(strings.TrimSpace(string(f.PieceIndex)), `"`)
	if raw == "" {
		return 0, errors.New("piece_index is required")
	}
	return strconv.Atoi(raw)
}

// exclude accepts a JSON array of links; anything else is treated as empty.
func (f *requestFields) exclude() []string {
	if len(f.Exclude) == 0 {
		return nil
	}
	var links []string
	if err := json.Unmarshal(f.Exclude, &links); err == nil {
		return links
	}
	// A form value may arrive JSON-encoded twice.
	var s string
	if err := json.Unmarshal(f.Exclude, &s); err == nil {
		_ = json.Unmarshal([]byte(s), &links)
	}
	return links
}

// respondSearchError maps pipeline errors onto the client envelope.
func respondSearchError(w http.ResponseWriter, logger *strings.Builder, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		utils.RespondFailure(w, logger, msgSessionExpired, http.StatusOK)
	case errors.Is(err, search.ErrNoAPIKey):
		utils.RespondFailure(w, logger, msgNotConfigured, http.StatusInternalServerError)
	default:
		utils.RespondFailure(w, logger, err.Error(), http.StatusOK)
	}
}

func requirePost(w http.ResponseWriter, r *http.Request, logger *strings.Builder) bool {
	if r.Method == http.MethodPost {
		return true
	}
	utils.RespondFailure(w, logger, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}
