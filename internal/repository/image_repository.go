package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	apperrors "go-optical-measure/internal/errors"
	"go-optical-measure/internal/storage"
	"go-optical-measure/pkg/validation"
)

// ImageRepository resolves image URLs to raw image bytes
type ImageRepository interface {
	// FetchImage validates imageURL and downloads it from the matching source
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)

	// ValidateImageURL checks imageURL without fetching it
	ValidateImageURL(imageURL string) error
}

// SourceRepository routes Azure Blob URLs of configured accounts to their blob
// fetcher and every other URL to the HTTP fetcher
type SourceRepository struct {
	validator *validation.URLValidator
	http      storage.ImageSource
	blobs     map[string]storage.ImageSource
}

// NewImageRepository creates a repository. httpSource may be nil when only blob
// sources are configured.
func NewImageRepository(validator *validation.URLValidator, httpSource storage.ImageSource) *SourceRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &SourceRepository{
		validator: validator,
		http:      httpSource,
		blobs:     make(map[string]storage.ImageSource),
	}
}

// WithBlobSource serves URLs of the given storage account from src
func (r *SourceRepository) WithBlobSource(account string, src storage.ImageSource) *SourceRepository {
	r.blobs[account] = src
	return r
}

// ValidateImageURL validates if the provided URL is acceptable
func (r *SourceRepository) ValidateImageURL(imageURL string) error {
	if err := r.validator.ValidateImageURL(imageURL); err != nil {
		var appErr *apperrors.AppError
		msg := "invalid image URL"
		if errors.As(err, &appErr) {
			msg = appErr.Message
		}
		return apperrors.NewValidationError(msg, fmt.Errorf("%w: %w", ErrInvalidImageURL, err))
	}
	return nil
}

// FetchImage validates imageURL and downloads it
func (r *SourceRepository) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	if err := r.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}
	src, err := r.sourceFor(imageURL)
	if err != nil {
		return nil, err
	}
	return src.Fetch(ctx, imageURL)
}

func (r *SourceRepository) sourceFor(imageURL string) (storage.ImageSource, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image URL", fmt.Errorf("%w: %w", ErrInvalidImageURL, err))
	}
	if src, ok := r.blobs[storage.AccountFromHost(parsed.Hostname())]; ok {
		return src, nil
	}
	if r.http == nil {
		return nil, apperrors.NewValidationError("no image source serves this URL", ErrSourceUnavailable)
	}
	return r.http, nil
}
