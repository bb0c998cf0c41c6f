package landmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/golang/geo/r2"

	apperrors "go-optical-measure/internal/errors"
	"go-optical-measure/internal/logger"
	"go-optical-measure/internal/raster"

	"github.com/sirupsen/logrus"
)

// iBUG 68 index ranges, end exclusive
var (
	ibugJaw      = [2]int{0, 17}
	ibugNose     = [2]int{27, 36}
	ibugLeftEye  = [2]int{36, 42}
	ibugRightEye = [2]int{42, 48}
)

const ibugPoints = 68

// ModelProvider detects landmarks with a trained keypoint model behind an HTTP endpoint.
// The model is loaded once per provider; a failed load is permanent.
type ModelProvider struct {
	manifestPath string
	client       *http.Client

	once     sync.Once
	manifest *Manifest
	loadErr  error
}

// NewModelProvider creates a provider for the manifest at manifestPath.
// A nil client uses a default one.
func NewModelProvider(manifestPath string, client *http.Client) *ModelProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &ModelProvider{
		manifestPath: manifestPath,
		client:       client,
	}
}

// Strategy returns StrategyModel
func (p *ModelProvider) Strategy() Strategy { return StrategyModel }

// Load reads the manifest and probes the model endpoint. Concurrent callers
// share a single in-flight load and observe the same outcome.
func (p *ModelProvider) Load(ctx context.Context) error {
	p.once.Do(func() {
		// the first caller's cancellation must not poison every later caller
		p.manifest, p.loadErr = p.load(context.WithoutCancel(ctx))
	})
	return p.loadErr
}

func (p *ModelProvider) load(ctx context.Context) (*Manifest, error) {
	m, err := LoadManifest(p.manifestPath)
	if err != nil {
		return nil, apperrors.NewInitializationError("landmark model manifest could not be loaded", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.Endpoint+m.HealthPath, nil)
	if err != nil {
		return nil, apperrors.NewInitializationError("landmark model health request could not be built", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.NewInitializationError("landmark model is unreachable", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewInitializationError(
			"landmark model is not ready",
			fmt.Errorf("health check returned status %d", resp.StatusCode),
		)
	}

	logger.WithFields(logrus.Fields{
		"model":    m.Name,
		"version":  m.Version,
		"endpoint": m.Endpoint,
		"layout":   m.Layout,
	}).Info("Landmark model loaded")

	return m, nil
}

type predictResponse struct {
	Model string        `json:"model"`
	Faces []predictFace `json:"faces"`
}

type predictFace struct {
	Score     float64      `json:"score"`
	Box       []float64    `json:"box,omitempty"`
	Landmarks [][2]float64 `json:"landmarks"`
}

// Detect posts the frame to the model and converts the best-scoring face
func (p *ModelProvider) Detect(ctx context.Context, img *raster.Image) (*Set, error) {
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	m := p.manifest

	body, contentType, err := encodeFrame(img)
	if err != nil {
		return nil, apperrors.NewInternalError("frame could not be encoded", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint+m.PredictPath, body)
	if err != nil {
		return nil, apperrors.NewInternalError("landmark request could not be built", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("landmark model did not answer in time", err)
		}
		return nil, apperrors.NewNetworkError("landmark model request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError("landmark model response could not be read", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewNetworkError(
			"landmark model returned an error",
			fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw)),
		)
	}

	var pr predictResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, apperrors.NewInternalError("landmark model response is malformed", err)
	}

	best := -1
	for i, f := range pr.Faces {
		if best < 0 || f.Score > pr.Faces[best].Score {
			best = i
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("%w: model returned no faces", ErrNoFace)
	}
	face := pr.Faces[best]
	if face.Score < m.MinConfidence {
		return nil, fmt.Errorf("%w: best face score %.3f below %.3f", ErrNoFace, face.Score, m.MinConfidence)
	}
	if len(face.Landmarks) < ibugPoints {
		return nil, apperrors.NewInternalError(
			"landmark model response is malformed",
			fmt.Errorf("expected %d landmarks, got %d", ibugPoints, len(face.Landmarks)),
		)
	}

	set := &Set{
		LeftEye:    pick(face.Landmarks, ibugLeftEye),
		RightEye:   pick(face.Landmarks, ibugRightEye),
		Nose:       pick(face.Landmarks, ibugNose),
		Jaw:        pick(face.Landmarks, ibugJaw),
		Confidence: min(max(face.Score, 0), 1),
		Strategy:   StrategyModel,
	}
	set.Orient()
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func pick(points [][2]float64, span [2]int) []r2.Point {
	out := make([]r2.Point, 0, span[1]-span[0])
	for _, p := range points[span[0]:span[1]] {
		out = append(out, r2.Point{X: p[0], Y: p[1]})
	}
	return out
}

// encodeFrame writes the frame as a lossless PNG multipart upload
func encodeFrame(img *raster.Image) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", "frame.png")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if err := png.Encode(part, img.RGBA); err != nil {
		return nil, "", fmt.Errorf("failed to encode frame: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
