package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/raushankrgupta/fitchy/models"
	"github.com/raushankrgupta/fitchy/utils"
)

// DetectHandler finds the garments in an uploaded photo and opens a search session.
func (h *Handler) DetectHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Detect API]")

	if !requirePost(w, r, &logMessageBuilder) {
		return
	}

	image, mimeType, err := readImage(w, r)
	if err != nil {
		utils.RespondFailure(w, &logMessageBuilder, err.Error(), http.StatusBadRequest)
		return
	}
	country := r.FormValue("country")
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("image=%d bytes (%s) country=%q", len(image), mimeType, country))

	res, err := h.Pipeline.Detect(r.Context(), image, mimeType, country)
	if err != nil {
		utils.RespondFailure(w, &logMessageBuilder, fmt.Sprintf("Detection failed: %v", err), http.StatusOK)
		return
	}
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("detect_id=%s pieces=%d", res.DetectID, len(res.Pieces)))

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"detect_id": res.DetectID,
		"pieces":    res.Pieces,
		"country":   res.Country,
	})
}

// SearchHandler detects and searches every piece in one request.
func (h *Handler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Search API]")

	if !requirePost(w, r, &logMessageBuilder) {
		return
	}

	image, mimeType, err := readImage(w, r)
	if err != nil {
		utils.RespondFailure(w, &logMessageBuilder, err.Error(), http.StatusBadRequest)
		return
	}
	country := r.FormValue("country")

	det, err := h.Pipeline.Detect(r.Context(), image, mimeType, country)
	if err != nil {
		utils.RespondFailure(w, &logMessageBuilder, fmt.Sprintf("Detection failed: %v", err), http.StatusOK)
		return
	}
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("detect_id=%s pieces=%d", det.DetectID, len(det.Pieces)))

	results := []models.PieceResult{}
	if len(det.Pieces) > 0 {
		results, err = h.Pipeline.SearchAll(r.Context(), det.Session, country)
		if err != nil {
			respondSearchError(w, &logMessageBuilder, err)
			return
		}
	}
	for _, res := range results {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("piece %d: %d products, %s", res.Index, len(res.Products), res.MatchLevel))
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"detect_id": det.DetectID,
		"pieces":    results,
		"country":   det.Country,
	})
}

// readImage takes the multipart "file" field, or downloads "image_url" when no file is sent.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, utils.MaxImageBytes+1<<20)
	if err := r.ParseMultipartForm(utils.MaxImageBytes); err != nil && err != http.ErrNotMultipart {
		return nil, "", fmt.Errorf("invalid upload: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if u := strings.TrimSpace(r.FormValue("image_url")); u != "" {
			return utils.DownloadImage(r.Context(), u)
		}
		return nil, "", fmt.Errorf("an image file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, utils.MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %v", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("the uploaded file is empty")
	}
	if len(data) > utils.MaxImageBytes {
		return nil, "", fmt.Errorf("image is larger than %d MB", utils.MaxImageBytes>>20)
	}

	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
