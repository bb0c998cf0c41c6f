package repository

import "errors"

var (
	// ErrInvalidImageURL indicates an image URL that may not be fetched
	ErrInvalidImageURL = errors.New("invalid image URL")

	// ErrSourceUnavailable indicates no configured source can serve the URL
	ErrSourceUnavailable = errors.New("image source unavailable")
)
