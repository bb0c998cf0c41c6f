package validation

import (
	"net/url"
	"slices"
	"strings"

	apperrors "go-optical-measure/internal/errors"
)

// MaxImageURLLength bounds the length of an image_url value
const MaxImageURLLength = 2048

// URLValidator checks image URLs before they are fetched
type URLValidator struct {
	allowedSchemes []string
	// allowedHosts entries match a hostname exactly; entries starting with "."
	// match any subdomain, so ".blob.core.windows.net" admits every storage account
	allowedHosts []string
}

// NewURLValidator creates a validator that admits any http(s) host
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{},
	}
}

// NewURLValidatorWithOptions creates a validator with explicit scheme and host lists
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	lowered := make([]string, len(hosts))
	for i, h := range hosts {
		lowered[i] = strings.ToLower(h)
	}
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   lowered,
	}
}

// ValidateImageURL returns a ValidationError when imageURL may not be fetched
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}
	if len(imageURL) > MaxImageURLLength {
		return apperrors.NewValidationError("URL is too long", nil)
	}

	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Hostname() == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if !v.isHostAllowed(parsedURL.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	return slices.Contains(v.allowedSchemes, strings.ToLower(scheme))
}

// isHostAllowed is true for every host when no restrictions are set
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
		if strings.HasPrefix(allowed, ".") && strings.HasSuffix(host, allowed) {
			return true
		}
	}
	return false
}
