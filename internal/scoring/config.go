package scoring

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Weights defines the tunable coefficients of the popularity formula.
type Weights struct {
	Rating        float64 `json:"rating"`          // Weight for the normalized rating (default: 2.0)
	Like          float64 `json:"like"`            // Weight for log-dampened likes (default: 1.0)
	Comment       float64 `json:"comment"`         // Weight for log-dampened comments (default: 1.5)
	HalfLifeHours float64 `json:"half_life_hours"` // Recency decay half-life in hours; 0 disables decay (default: 48)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configuration
}

// DefaultWeights returns the default popularity weight configuration.
//
// Formula: score = ((rating/5 * 2.0) + (log1p(likes) * 1.0) + (log1p(comments) * 1.5)) * 0.5^(age/48h)
//   - Comments weigh more than likes; leaving a comment is a stronger signal.
//   - Rating caps out at 2.0 so pure five-star reviews with no engagement
//     don't dominate heavily-discussed ones.
//   - The 48h half-life keeps daily and weekly rankings fresh without
//     erasing older reviews outright.
func DefaultWeights() *Weights {
	return &Weights{
		Rating:        2.0,
		Like:          1.0,
		Comment:       1.5,
		HalfLifeHours: 48,
	}
}

// HalfLife returns the decay half-life as a duration.
func (w *Weights) HalfLife() time.Duration {
	return time.Duration(w.HalfLifeHours * float64(time.Hour))
}

// Validate checks that all weights are usable: component weights must be
// non-negative so the monotonicity guarantees of Score hold.
func (w *Weights) Validate() error {
	if w.Rating < 0 {
		return fmt.Errorf("rating weight must be non-negative (got %v)", w.Rating)
	}
	if w.Like < 0 {
		return fmt.Errorf("like weight must be non-negative (got %v)", w.Like)
	}
	if w.Comment < 0 {
		return fmt.Errorf("comment weight must be non-negative (got %v)", w.Comment)
	}
	if w.HalfLifeHours < 0 {
		return fmt.Errorf("half-life must be non-negative (got %v)", w.HalfLifeHours)
	}
	return nil
}

// LoadCalibration loads popularity weights from a JSON calibration file.
// Missing fields are merged with defaults so partial configurations degrade
// gracefully. On any error the defaults are returned alongside the error so
// callers can log and continue.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return DefaultWeights(), fmt.Errorf("failed to read calibration file %s: %w", filePath, err)
	}

	var cfg CalibrationConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file %s: %w", filePath, err)
	}

	weights := mergeWithDefaults(cfg.Weights)
	if err := weights.Validate(); err != nil {
		return DefaultWeights(), fmt.Errorf("invalid calibration in %s: %w", filePath, err)
	}

	slog.Info("loaded scoring calibration",
		"path", filePath,
		"version", cfg.Version,
		"rating", weights.Rating,
		"like", weights.Like,
		"comment", weights.Comment,
		"half_life_hours", weights.HalfLifeHours)

	return weights, nil
}

// mergeWithDefaults fills zero-valued fields from the defaults. A weight of
// exactly zero in the file is indistinguishable from an omitted field and is
// treated as "use the default"; calibrations that want to disable a component
// should use a tiny positive value instead.
func mergeWithDefaults(w Weights) *Weights {
	defaults := DefaultWeights()
	merged := w
	if merged.Rating == 0 {
		merged.Rating = defaults.Rating
	}
	if merged.Like == 0 {
		merged.Like = defaults.Like
	}
	if merged.Comment == 0 {
		merged.Comment = defaults.Comment
	}
	if merged.HalfLifeHours == 0 {
		merged.HalfLifeHours = defaults.HalfLifeHours
	}
	return &merged
}
