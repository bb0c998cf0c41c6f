package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"go-optical-measure/internal/calibration"
	"go-optical-measure/internal/config"
	"go-optical-measure/internal/engine"
	"go-optical-measure/internal/factory"
	"go-optical-measure/internal/landmark"
	"go-optical-measure/internal/logger"
	"go-optical-measure/internal/measurement"
	"go-optical-measure/pkg/validation"
)

// output is what the measure command prints
type output struct {
	File string `json:"file"`
	measurement.Result
	Warnings []string `json:"warnings,omitempty"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "measure [image-file]",
		Short: "Measure optical parameters from a frontal face photo",
		Long: `Measure pupillary distance, segment heights, bridge width and the other
optical parameters used to fit spectacles from a single frontal face photo.

Examples:
  # Full measurement with the default calibration
  measure face.jpg

  # Pupillary distance calibrated against a card of known width
  measure --type pd --object credit_card --pixel-width 412 face.jpg

  # Use the landmark model described by a manifest
  measure --strategy model --manifest models/face.yaml face.jpg`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = config.LoadDotEnv()
			level := "warn"
			if mustGetBool(cmd, "verbose") {
				level = "debug"
			}
			return logger.Configure(logger.Options{Level: level, Format: "text", Stderr: true})
		},
		RunE: runMeasure,
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "Log pipeline details to stderr")

	root.Flags().StringP("type", "t", string(measurement.TypeDefault), "Measurement type, see the types command")
	root.Flags().String("object", "", "Reference object in the frame, e.g. credit_card")
	root.Flags().Float64("real-size", 0, "Reference object width in mm (defaults to the catalogue size)")
	root.Flags().Float64("pixel-width", 0, "Reference object width in image pixels (detected when omitted)")
	root.Flags().String("strategy", string(landmark.StrategyHeuristic), "Landmark strategy: heuristic or model")
	root.Flags().String("manifest", "", "Landmark model manifest (model strategy)")
	root.Flags().Int("max-dimension", 0, "Working frame cap in pixels (0 uses the default)")
	root.Flags().Bool("fast", false, "Use a smaller working frame")
	root.Flags().Duration("timeout", 30*time.Second, "Measurement timeout")

	root.AddCommand(newTypesCmd())
	return root
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List measurement types and calibration objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Measurement types:")
			for _, t := range measurement.Types() {
				fmt.Fprintf(out, "  %s\n", t)
			}
			fmt.Fprintln(out, "Calibration objects:")
			for _, o := range calibration.KnownObjects() {
				fmt.Fprintf(out, "  %s\n", o)
			}
			return nil
		},
	}
}

func runMeasure(cmd *cobra.Command, args []string) error {
	typ, err := measurement.ParseType(mustGetString(cmd, "type"))
	if err != nil {
		return err
	}
	ref, err := referenceFromFlags(cmd)
	if err != nil {
		return err
	}
	strategy, err := landmark.ParseStrategy(strings.ToLower(mustGetString(cmd, "strategy")))
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), mustGetDuration(cmd, "timeout"))
	defer cancel()

	provider, err := factory.NewProviderFactory(mustGetString(cmd, "manifest"), nil).CreateProvider(strategy)
	if err != nil {
		return err
	}
	if loader, ok := provider.(landmark.Loader); ok {
		if err := loader.Load(ctx); err != nil {
			return err
		}
	}

	opts := engine.DefaultOptions()
	if mustGetBool(cmd, "fast") {
		opts = engine.FastOptions()
	}
	if px := mustGetInt(cmd, "max-dimension"); px > 0 {
		opts = opts.WithMaxDimension(px)
	}
	eng := engine.New(provider, opts)
	defer eng.Close()

	result, err := eng.MeasureBytes(ctx, data, ref, typ)
	if err != nil {
		return err
	}

	v := validation.NewMeasurementValidator()
	return writeJSON(cmd.OutOrStdout(), output{
		File:     args[0],
		Result:   *result,
		Warnings: v.ConvertIssuesToMessages(v.Validate(*result)),
	})
}

func referenceFromFlags(cmd *cobra.Command) (*calibration.Reference, error) {
	object := mustGetString(cmd, "object")
	realSize := mustGetFloat64(cmd, "real-size")
	pixelWidth := mustGetFloat64(cmd, "pixel-width")

	if object == "" {
		if realSize != 0 || pixelWidth != 0 {
			return nil, errors.New("--real-size and --pixel-width require --object")
		}
		return nil, nil
	}
	for _, v := range []float64{realSize, pixelWidth} {
		if v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, errors.New("reference sizes must be finite positive numbers")
		}
	}
	return &calibration.Reference{ObjectType: object, RealSizeMm: realSize, PixelWidth: pixelWidth}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
