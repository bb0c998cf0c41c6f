package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-optical-measure/internal/errors"
)

func TestNewURLValidator(t *testing.T) {
	validator := NewURLValidator()
	require.NotNil(t, validator)
	assert.Equal(t, []string{"http", "https"}, validator.allowedSchemes)
	assert.Empty(t, validator.allowedHosts)
}

func TestValidateImageURL(t *testing.T) {
	validator := NewURLValidator()

	tests := []struct {
		name    string
		url     string
		wantMsg string
	}{
		{"http", "http://example.com/face.jpg", ""},
		{"https with port", "https://example.com:8443/face.png", ""},
		{"ip host", "http://192.168.1.1/face.jpg", ""},
		{"upper case scheme", "HTTPS://example.com/face.jpg", ""},
		{"empty", "", "URL cannot be empty"},
		{"blank", " \t\n", "URL cannot be empty"},
		{"too long", "https://example.com/" + strings.Repeat("a", MaxImageURLLength), "URL is too long"},
		{"bad format", "://missing-scheme", "Invalid URL format"},
		{"relative", "not-a-url", "URL scheme not allowed"},
		{"ftp", "ftp://example.com/face.jpg", "URL scheme not allowed"},
		{"file", "file://local/path/face.jpg", "URL scheme not allowed"},
		{"data", "data:image/png;base64,iVBORw0KGgo=", "URL scheme not allowed"},
		{"no host", "http://", "URL must have a valid host"},
		{"port only", "https://:443/face.jpg", "URL must have a valid host"},
		{"path only", "http:///path", "URL must have a valid host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateImageURL(tt.url)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, apperrors.ErrorKindValidation, appErr.Kind)
			assert.Equal(t, tt.wantMsg, appErr.Message)
		})
	}
}

func TestValidateImageURLRestrictedHosts(t *testing.T) {
	validator := NewURLValidatorWithOptions([]string{"https"}, []string{"Captures.Example.com", ".blob.core.windows.net"})

	tests := []struct {
		url     string
		allowed bool
	}{
		{"https://captures.example.com/face.jpg", true},
		{"https://CAPTURES.example.com/face.jpg", true},
		{"https://clinic.blob.core.windows.net/frames/face.png", true},
		{"https://example.com/face.jpg", false},
		{"https://blob.core.windows.net.evil.com/face.jpg", false},
		{"http://captures.example.com/face.jpg", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := validator.ValidateImageURL(tt.url)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.IsKind(err, apperrors.ErrorKindValidation))
			}
		})
	}
}

func TestIsHostAllowed(t *testing.T) {
	assert.True(t, NewURLValidator().isHostAllowed("anything.example"))

	restricted := NewURLValidatorWithOptions([]string{"http", "https"}, []string{"example.com", ".trusted.com"})
	assert.True(t, restricted.isHostAllowed("example.com"))
	assert.True(t, restricted.isHostAllowed("cdn.trusted.com"))
	assert.False(t, restricted.isHostAllowed("trusted.com"))
	assert.False(t, restricted.isHostAllowed("sub.example.com"))
}
