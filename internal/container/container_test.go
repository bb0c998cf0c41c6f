package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-optical-measure/internal/config"
	apperrors "go-optical-measure/internal/errors"
	"go-optical-measure/internal/landmark"
)

func testConfig() *config.Config {
	return &config.Config{
		Host:               "127.0.0.1",
		Port:               "8080",
		RequestTimeout:     5 * time.Second,
		ImageFetchTimeout:  5 * time.Second,
		MeasureTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		LandmarkStrategy:   landmark.StrategyHeuristic,
		MaxImageDimension:  640,
		DefaultDPI:         96,
		CardMinConfidence:  0.6,
	}
}

func TestNewContainerHeuristic(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, err := NewContainer(context.Background(), testConfig())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "heuristic", c.Service().Strategy())

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewContainerModelLoadFailureIsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.LandmarkStrategy = landmark.StrategyModel
	cfg.LandmarkModelManifest = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewContainer(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrorKindInitialization))
}
