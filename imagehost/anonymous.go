package imagehost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Imgur uploads anonymously with a registered client id.
type Imgur struct {
	ClientID string
	Endpoint string
	client   *http.Client
}

func NewImgur(clientID string) *Imgur {
	return &Imgur{ClientID: clientID, Endpoint: "https://api.imgur.com/3/image", client: &http.Client{Timeout: DefaultTimeout}}
}

func (h *Imgur) Name() string { return "imgur" }

func (h *Imgur) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	header := http.Header{}
	header.Set("Authorization", "Client-ID "+h.ClientID)
	body, err := postMultipart(ctx, h.client, h.Endpoint, map[string]string{"type": "file"}, "image", filename, data, header)
	if err != nil {
		return "", err
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Link string `json:"link"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode imgur response: %w", err)
	}
	if !resp.Success || resp.Data.Link == "" {
		return "", fmt.Errorf("imgur returned no link")
	}
	return resp.Data.Link, nil
}

// Catbox uploads to catbox.moe, which answers with the file URL as plain text.
type Catbox struct {
	Endpoint string
	client   *http.Client
}

func NewCatbox() *Catbox {
	return &Catbox{Endpoint: "https://catbox.moe/user/api.php", client: &http.Client{Timeout: DefaultTimeout}}
}

func (h *Catbox) Name() string { return "catbox" }

func (h *Catbox) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	body, err := postMultipart(ctx, h.client, h.Endpoint, map[string]string{"reqtype": "fileupload"}, "fileToUpload", filename, data, nil)
	if err != nil {
		return "", err
	}
	u := strings.TrimSpace(string(body))
	if !strings.HasPrefix(u, "https://") {
		return "", fmt.Errorf("catbox returned %q", truncate(u, 80))
	}
	return u, nil
}

// Tmpfiles uploads to tmpfiles.org and returns the direct download URL.
type Tmpfiles struct {
	Endpoint string
	client   *http.Client
}

func NewTmpfiles() *Tmpfiles {
	return &Tmpfiles{Endpoint: "https://tmpfiles.org/api/v1/upload", client: &http.Client{Timeout: DefaultTimeout}}
}

func (h *Tmpfiles) Name() string { return "tmpfiles" }

func (h *Tmpfiles) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	body, err := postMultipart(ctx, h.client, h.Endpoint, nil, "file", filename, data, nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode tmpfiles response: %w", err)
	}
	if resp.Data.URL == "" {
		return "", fmt.Errorf("tmpfiles returned no url")
	}
	return directTmpfilesURL(resp.Data.URL), nil
}

// directTmpfilesURL turns the viewer page URL into the raw file URL Lens can fetch.
func directTmpfilesURL(u string) string {
	u = strings.Replace(u, "http://", "https://", 1)
	if strings.Contains(u, "tmpfiles.org/dl/") {
		return u
	}
	return strings.Replace(u, "tmpfiles.org/", "tmpfiles.org/dl/", 1)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
