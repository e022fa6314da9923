// Package fetch downloads remote images and encodes them for model input.
package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"condense/internal/core"
	"condense/internal/logger"
)

const (
	// maxImageBytes caps a single download; larger images are skipped.
	maxImageBytes = 5 << 20

	defaultTimeout = 20 * time.Second
)

// ImageFetcher downloads images over HTTP and returns them base64 encoded.
// Individual failures are logged and skipped rather than failing the batch.
type ImageFetcher struct {
	httpClient *http.Client
}

// NewImageFetcher creates a fetcher with a bounded per-request timeout.
func NewImageFetcher() *ImageFetcher {
	return &ImageFetcher{
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// FetchImages downloads up to limit images from urls, in order. URLs that
// fail, are not images, or exceed the size cap are skipped. A cancelled
// context stops the batch and returns whatever was fetched so far.
func (f *ImageFetcher) FetchImages(ctx context.Context, urls []string, limit int) []core.FetchedImage {
	if limit <= 0 || len(urls) == 0 {
		return nil
	}

	var images []core.FetchedImage
	for _, url := range urls {
		if len(images) >= limit {
			break
		}
		if ctx.Err() != nil {
			break
		}

		img, err := f.fetchOne(ctx, url)
		if err != nil {
			logger.Warn("image fetch skipped", "url", url, "error", err)
			continue
		}
		images = append(images, img)
	}
	return images
}

func (f *ImageFetcher) fetchOne(ctx context.Context, url string) (core.FetchedImage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return core.FetchedImage{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return core.FetchedImage{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return core.FetchedImage{}, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	// +1 so an oversized body is detectable without reading it all.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return core.FetchedImage{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return core.FetchedImage{}, fmt.Errorf("image exceeds %d byte limit", maxImageBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
		if !strings.HasPrefix(mimeType, "image/") {
			return core.FetchedImage{}, fmt.Errorf("not an image: content type %q", mimeType)
		}
	}

	return core.FetchedImage{
		URL:      url,
		Base64:   base64.StdEncoding.EncodeToString(data),
		MIMEType: mimeType,
	}, nil
}
