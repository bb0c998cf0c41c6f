package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "go-optical-measure/internal/errors"
)

// ImageSource returns the raw bytes of a remote image
type ImageSource interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// DefaultMaxImageBytes bounds a downloaded image
const DefaultMaxImageBytes = 10 << 20

// HTTPFetcherOptions tunes HTTPImageFetcher
type HTTPFetcherOptions struct {
	Timeout  time.Duration
	MaxBytes int64
	// Attempts is the total number of tries for transient failures
	Attempts int
	// Backoff is the wait before the second attempt; later waits grow linearly
	Backoff time.Duration
}

// DefaultHTTPFetcherOptions returns production settings
func DefaultHTTPFetcherOptions() HTTPFetcherOptions {
	return HTTPFetcherOptions{
		Timeout:  30 * time.Second,
		MaxBytes: DefaultMaxImageBytes,
		Attempts: 3,
		Backoff:  time.Second,
	}
}

// HTTPImageFetcher downloads images over HTTP(S) with retries for transient failures
type HTTPImageFetcher struct {
	client *http.Client
	opts   HTTPFetcherOptions
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(opts HTTPFetcherOptions) *HTTPImageFetcher {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxImageBytes
	}

	transport := &http.Transport{
		// Connection pooling sized for single image downloads
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		opts: opts,
	}
}

// statusError is a non-200 response
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	if e.code >= 500 {
		return fmt.Sprintf("server error: status code %d", e.code)
	}
	return fmt.Sprintf("client error: status code %d", e.code)
}

func (e *statusError) retryable() bool { return e.code >= 500 }

// Fetch downloads imageURL. 4xx responses are not retried; 5xx responses and
// transport errors are retried up to Attempts times.
func (h *HTTPImageFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < h.opts.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("image fetch cancelled", ctx.Err())
			case <-time.After(time.Duration(attempt) * h.opts.Backoff):
			}
		}

		data, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var appErr *apperrors.AppError
		var status *statusError
		switch {
		case errors.As(err, &appErr):
			return nil, err
		case errors.As(err, &status) && !status.retryable():
			return nil, apperrors.NewNetworkError("image source rejected the request", err)
		case ctx.Err() != nil:
			return nil, apperrors.NewTimeoutError("image fetch did not finish in time", err)
		}
	}
	return nil, apperrors.NewNetworkError(
		"failed to fetch image",
		fmt.Errorf("failed to fetch image after %d attempts: %w", h.opts.Attempts, lastErr),
	)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image URL", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, image/bmp, */*")
	req.Header.Set("User-Agent", "Go-Optical-Measure/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}
	return readLimited(resp.Body, h.opts.MaxBytes)
}

// readLimited reads r fully and fails with an InputError beyond limit bytes
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, apperrors.NewInputError(
			"image exceeds the size limit",
			fmt.Errorf("more than %d bytes", limit),
		)
	}
	return data, nil
}
