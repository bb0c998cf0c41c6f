package landmark

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LayoutIBUG68 is the 68-point iBUG annotation layout
const LayoutIBUG68 = "ibug68"

// Manifest describes a served keypoint model
type Manifest struct {
	Name          string        `yaml:"name"`
	Version       string        `yaml:"version"`
	Endpoint      string        `yaml:"endpoint"`
	PredictPath   string        `yaml:"predict_path"`
	HealthPath    string        `yaml:"health_path"`
	Layout        string        `yaml:"layout"`
	MinConfidence float64       `yaml:"min_confidence"`
	Timeout       time.Duration `yaml:"timeout"`
}

// LoadManifest reads and parses a manifest file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes a YAML manifest, fills defaults and validates it
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{
		PredictPath:   "/v1/landmarks",
		HealthPath:    "/healthz",
		Layout:        LayoutIBUG68,
		MinConfidence: 0.5,
		Timeout:       10 * time.Second,
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	m.Endpoint = strings.TrimSuffix(m.Endpoint, "/")
	return m, nil
}

func (m *Manifest) validate() error {
	if m.Endpoint == "" {
		return fmt.Errorf("manifest: endpoint is required")
	}
	u, err := url.Parse(m.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("manifest: endpoint %q is not an http(s) URL", m.Endpoint)
	}
	if m.Layout != LayoutIBUG68 {
		return fmt.Errorf("manifest: unsupported layout %q", m.Layout)
	}
	if m.MinConfidence < 0 || m.MinConfidence > 1 {
		return fmt.Errorf("manifest: min_confidence must be within [0,1] (got %v)", m.MinConfidence)
	}
	if m.Timeout <= 0 {
		return fmt.Errorf("manifest: timeout must be > 0")
	}
	return nil
}
