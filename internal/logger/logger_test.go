package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	t.Cleanup(func() { _ = Configure(Options{}) })

	tests := []struct {
		name    string
		opts    Options
		level   logrus.Level
		wantErr bool
	}{
		{"defaults", Options{}, logrus.InfoLevel, false},
		{"debug text", Options{Level: "debug", Format: "text"}, logrus.DebugLevel, false},
		{"warn json", Options{Level: " WARN ", Format: "JSON"}, logrus.WarnLevel, false},
		{"file sink", Options{Level: "error", File: filepath.Join(t.TempDir(), "measure.log")}, logrus.ErrorLevel, false},
		{"bad format", Options{Format: "xml"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Configure(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.level, Logger.GetLevel())
		})
	}
}

func TestWithRequestID(t *testing.T) {
	t.Cleanup(func() { _ = Configure(Options{}) })
	require.NoError(t, Configure(Options{}))

	var buf bytes.Buffer
	Logger.SetOutput(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-42")
	WithRequestID(ctx).Info("measured")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-42", line[RequestIDField])
	assert.Equal(t, "measured", line["msg"])
}

func TestRequestIDUnknown(t *testing.T) {
	assert.Equal(t, "unknown", RequestID(context.Background()))
	assert.Equal(t, "unknown", RequestID(ContextWithRequestID(context.Background(), "")))
}
