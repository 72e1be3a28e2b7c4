package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/raushankrgupta/fitchy/pipeline"
	"github.com/raushankrgupta/fitchy/utils"
)

// SearchPieceHandler searches one piece of a session opened by /detect.
func (h *Handler) SearchPieceHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Search Piece API]")

	if !requirePost(w, r, &logMessageBuilder) {
		return
	}

	fields, err := readFields(r)
	if err != nil {
		utils.RespondFailure(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	if fields.DetectID == "" {
		utils.RespondFailure(w, &logMessageBuilder, "detect_id is required", http.StatusBadRequest)
		return
	}
	index, err := fields.pieceIndex()
	if err != nil {
		utils.RespondFailure(w, &logMessageBuilder, "piece_index must be a number", http.StatusBadRequest)
		return
	}
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("detect_id=%s piece=%d country=%q", fields.DetectID, index, fields.Country))

	res, err := h.Pipeline.SearchPiece(r.Context(), fields.DetectID, index, fields.Country)
	if err != nil {
		if errors.Is(err, pipeline.ErrBadPiece) {
			utils.RespondFailure(w, &logMessageBuilder, "Invalid piece index", http.StatusOK)
			return
		}
		respondSearchError(w, &logMessageBuilder, err)
		return
	}
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("%d products, lens=%d, match=%s, query=%q", len(res.Products), res.LensCount, res.MatchLevel, res.Query))

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"piece":         res,
		"country":       res.Country,
		"_search_query": res.Query,
	})
}

// LoadMoreHandler returns the next page of organic results for a query.
func (h *Handler) LoadMoreHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Load More API]")

	if !requirePost(w, r, &logMessageBuilder) {
		return
	}

	fields, err := readFields(r)
	if err != nil {
		utils.RespondFailure(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	exclude := fields.exclude()
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("query=%q country=%q exclude=%d", fields.Query, fields.Country, len(exclude)))

	products, err := h.Pipeline.LoadMore(r.Context(), fields.Query, fields.Country, exclude)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQuery) {
			utils.RespondFailure(w, &logMessageBuilder, "query is required", http.StatusBadRequest)
			return
		}
		respondSearchError(w, &logMessageBuilder, err)
		return
	}
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("%d products", len(products)))

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"products": products,
		"country":  h.Pipeline.Country(fields.Country).Code,
	})
}
