package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/textproto"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds one upload attempt.
const DefaultTimeout = 30 * time.Second

// Host makes image bytes reachable at a public URL
type Host interface {
	Name() string
	Upload(ctx context.Context, data []byte, filename string) (string, error)
}

// Chain tries hosts in order and returns the first URL obtained.
type Chain struct {
	hosts   []Host
	Timeout time.Duration
}

func NewChain(hosts ...Host) *Chain {
	return &Chain{hosts: hosts, Timeout: DefaultTimeout}
}

// Hosts lists the configured host names in order.
func (c *Chain) Hosts() []string {
	names := make([]string, 0, len(c.hosts))
	for _, h := range c.hosts {
		names = append(names, h.Name())
	}
	return names
}

// Upload returns the URL from the first host that accepts the image.
func (c *Chain) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("nothing to upload")
	}
	var errs []error
	for _, h := range c.hosts {
		hctx, cancel := context.WithTimeout(ctx, c.Timeout)
		u, err := h.Upload(hctx, data, filename)
		cancel()
		if err == nil && u != "" {
			return u, nil
		}
		if err == nil {
			err = fmt.Errorf("empty url")
		}
		errs = append(errs, fmt.Errorf("%s: %w", h.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("all image hosts failed: %v", errs)
}

// UploadAll uploads every crop concurrently and returns index -> URL for the ones that made it.
func (c *Chain) UploadAll(ctx context.Context, crops map[int][]byte, prefix string) map[int]string {
	urls := make(map[int]string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for idx, data := range crops {
		if len(data) == 0 {
			continue
		}
		wg.Add(1)
		go func(idx int, data []byte) {
			defer wg.Done()

			filename := fmt.Sprintf("%s_%d.jpg", prefix, idx)
			u, err := c.Upload(ctx, data, filename)
			if err != nil {
				log.Printf("[ImageHost] crop %d upload failed: %v", idx, err)
				return
			}

			mu.Lock()
			urls[idx] = u
			mu.Unlock()
		}(idx, data)
	}

	wg.Wait()
	return urls
}

// postMultipart sends one file field plus extra form fields and returns the body.
func postMultipart(ctx context.Context, client *http.Client, endpoint string, fields map[string]string, fileField, filename string, data []byte, header http.Header) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	part := make(textproto.MIMEHeader)
	part.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fileField, filename))
	part.Set("Content-Type", ContentType(filename))
	fw, err := mw.CreatePart(part)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
	return out, nil
}
