// Package config loads engine tuning parameters from JSON. The schema
// matches the /api/config endpoint so the same document can be used for
// startup configuration and runtime inspection.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds every tunable threshold of the tracking engine.
// All fields are pointers so a partial JSON document only overrides
// what it names; the Get* accessors supply defaults for the rest.
type TuningConfig struct {
	// Calibration params
	ReprojectionThresholdMeters *float64 `json:"reprojection_threshold_meters,omitempty"`

	// Tracker params
	MinConfidence      *float64 `json:"min_confidence,omitempty"`
	SmoothingAlpha     *float64 `json:"smoothing_alpha,omitempty"`
	MaxGapSeconds      *float64 `json:"max_gap_seconds,omitempty"`
	BoundsMarginMeters *float64 `json:"bounds_margin_meters,omitempty"`

	// Heatmap params
	CellsPerMeter     *float64 `json:"cells_per_meter,omitempty"`
	KernelRadiusCells *int     `json:"kernel_radius_cells,omitempty"`
	KernelSigmaCells  *float64 `json:"kernel_sigma_cells,omitempty"`
	MaxCellWeight     *float64 `json:"max_cell_weight,omitempty"`
	DecayFactor       *float64 `json:"decay_factor,omitempty"`

	// Session params
	MaxPositionHistory *int `json:"max_position_history,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching the current directory and common parent
// directories. Panics if the file cannot be loaded; intended for test
// setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that any set configuration values are in range.
func (c *TuningConfig) Validate() error {
	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
		}
	}
	if c.SmoothingAlpha != nil {
		if *c.SmoothingAlpha <= 0 || *c.SmoothingAlpha > 1 {
			return fmt.Errorf("smoothing_alpha must be in (0, 1], got %f", *c.SmoothingAlpha)
		}
	}
	if c.MaxGapSeconds != nil && *c.MaxGapSeconds <= 0 {
		return fmt.Errorf("max_gap_seconds must be positive, got %f", *c.MaxGapSeconds)
	}
	if c.CellsPerMeter != nil && *c.CellsPerMeter <= 0 {
		return fmt.Errorf("cells_per_meter must be positive, got %f", *c.CellsPerMeter)
	}
	if c.KernelRadiusCells != nil && *c.KernelRadiusCells < 0 {
		return fmt.Errorf("kernel_radius_cells must be non-negative, got %d", *c.KernelRadiusCells)
	}
	if c.KernelSigmaCells != nil && *c.KernelSigmaCells <= 0 {
		return fmt.Errorf("kernel_sigma_cells must be positive, got %f", *c.KernelSigmaCells)
	}
	if c.MaxCellWeight != nil && *c.MaxCellWeight <= 0 {
		return fmt.Errorf("max_cell_weight must be positive, got %f", *c.MaxCellWeight)
	}
	if c.DecayFactor != nil {
		if *c.DecayFactor <= 0 || *c.DecayFactor > 1 {
			return fmt.Errorf("decay_factor must be in (0, 1], got %f", *c.DecayFactor)
		}
	}
	if c.ReprojectionThresholdMeters != nil && *c.ReprojectionThresholdMeters <= 0 {
		return fmt.Errorf("reprojection_threshold_meters must be positive, got %f", *c.ReprojectionThresholdMeters)
	}
	if c.BoundsMarginMeters != nil && *c.BoundsMarginMeters < 0 {
		return fmt.Errorf("bounds_margin_meters must be non-negative, got %f", *c.BoundsMarginMeters)
	}
	if c.MaxPositionHistory != nil && *c.MaxPositionHistory < 0 {
		return fmt.Errorf("max_position_history must be non-negative, got %d", *c.MaxPositionHistory)
	}
	return nil
}

// GetReprojectionThresholdMeters returns the calibration validity
// threshold or the default.
func (c *TuningConfig) GetReprojectionThresholdMeters() float64 {
	if c.ReprojectionThresholdMeters == nil {
		return 0.25
	}
	return *c.ReprojectionThresholdMeters
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.7
	}
	return *c.MinConfidence
}

// GetSmoothingAlpha returns the smoothing_alpha value or the default.
func (c *TuningConfig) GetSmoothingAlpha() float64 {
	if c.SmoothingAlpha == nil {
		return 0.5
	}
	return *c.SmoothingAlpha
}

// GetMaxGapSeconds returns the max_gap_seconds value or the default.
func (c *TuningConfig) GetMaxGapSeconds() float64 {
	if c.MaxGapSeconds == nil {
		return 0.5
	}
	return *c.MaxGapSeconds
}

// GetBoundsMarginMeters returns the bounds_margin_meters value or the default.
func (c *TuningConfig) GetBoundsMarginMeters() float64 {
	if c.BoundsMarginMeters == nil {
		return 1.0
	}
	return *c.BoundsMarginMeters
}

// GetCellsPerMeter returns the cells_per_meter value or the default.
func (c *TuningConfig) GetCellsPerMeter() float64 {
	if c.CellsPerMeter == nil {
		return 4.0
	}
	return *c.CellsPerMeter
}

// GetKernelRadiusCells returns the kernel_radius_cells value or the default.
func (c *TuningConfig) GetKernelRadiusCells() int {
	if c.KernelRadiusCells == nil {
		return 1
	}
	return *c.KernelRadiusCells
}

// GetKernelSigmaCells returns the kernel_sigma_cells value or the default.
func (c *TuningConfig) GetKernelSigmaCells() float64 {
	if c.KernelSigmaCells == nil {
		return 0.75
	}
	return *c.KernelSigmaCells
}

// GetMaxCellWeight returns the max_cell_weight value or the default.
func (c *TuningConfig) GetMaxCellWeight() float64 {
	if c.MaxCellWeight == nil {
		return 1000.0
	}
	return *c.MaxCellWeight
}

// GetDecayFactor returns the decay_factor value or the default.
func (c *TuningConfig) GetDecayFactor() float64 {
	if c.DecayFactor == nil {
		return 0.995
	}
	return *c.DecayFactor
}

// GetMaxPositionHistory returns the max_position_history value or the default.
func (c *TuningConfig) GetMaxPositionHistory() int {
	if c.MaxPositionHistory == nil {
		return 4096
	}
	return *c.MaxPositionHistory
}
