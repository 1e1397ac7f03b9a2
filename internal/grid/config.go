package grid

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Limits enforced by Config.Validate.
const (
	MaxInputDim        = 7  // one spatial-hash prime per axis
	MaxLevelDim        = 32 // per-unit accumulators live on the stack
	MaxLog2HashmapSize = 31
	// MaxResolution keeps vertex coordinates within the spatial hash's uint32
	// arithmetic.
	MaxResolution = math.MaxInt32 - 1
)

// GridKind selects how grid vertices are mapped to table rows.
type GridKind int

// Supported grid kinds.
const (
	// Hash addresses every level through the spatial hash, even when the dense
	// vertex count would fit the table.
	Hash GridKind = iota
	// Tiled addresses a level directly when its dense vertex count fits the
	// table and falls back to the spatial hash otherwise.
	Tiled
)

// String returns the configuration name of the kind.
func (k GridKind) String() string {
	switch k {
	case Hash:
		return "hash"
	case Tiled:
		return "tiled"
	default:
		return fmt.Sprintf("GridKind(%d)", int(k))
	}
}

// ParseGridKind parses "hash" or "tiled".
func ParseGridKind(s string) (GridKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hash":
		return Hash, nil
	case "tiled":
		return Tiled, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// MarshalJSON encodes the kind by name.
func (k GridKind) MarshalJSON() ([]byte, error) {
	if k != Hash && k != Tiled {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *GridKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseGridKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Config describes a grid encoder. It is immutable once a Geometry is built from it.
type Config struct {
	InputDim        int     `json:"input_dim"`
	NumLevels       int     `json:"num_levels"`
	LevelDim        int     `json:"level_dim"`
	PerLevelScale   float64 `json:"per_level_scale"`
	BaseResolution  int     `json:"base_resolution"`
	Log2HashmapSize int     `json:"log2_hashmap_size"`

	// DesiredResolution, when positive, overrides PerLevelScale so that the
	// finest level reaches this resolution.
	DesiredResolution int `json:"desired_resolution,omitempty"`

	Kind         GridKind `json:"grid_type"`
	AlignCorners bool     `json:"align_corners"`

	// HalfPrecision reads the embedding table in float16. Only honored when
	// LevelDim is even.
	HalfPrecision bool `json:"half_precision,omitempty"`
}

// DefaultConfig returns the conventional 3D hash-grid configuration.
func DefaultConfig() Config {
	return Config{
		InputDim:        3,
		NumLevels:       16,
		LevelDim:        2,
		PerLevelScale:   2,
		BaseResolution:  16,
		Log2HashmapSize: 19,
		Kind:            Hash,
	}
}

// Validate checks the configuration before any geometry is derived from it.
func (c Config) Validate() error {
	switch {
	case c.InputDim < 1 || c.InputDim > MaxInputDim:
		return fmt.Errorf("%w: input_dim %d out of range [1, %d]", ErrInvalidConfig, c.InputDim, MaxInputDim)
	case c.NumLevels < 1:
		return fmt.Errorf("%w: num_levels must be positive, got %d", ErrInvalidConfig, c.NumLevels)
	case c.LevelDim < 1 || c.LevelDim > MaxLevelDim:
		return fmt.Errorf("%w: level_dim %d out of range [1, %d]", ErrInvalidConfig, c.LevelDim, MaxLevelDim)
	case c.BaseResolution < 1:
		return fmt.Errorf("%w: base_resolution must be positive, got %d", ErrInvalidConfig, c.BaseResolution)
	case c.Log2HashmapSize < 1 || c.Log2HashmapSize > MaxLog2HashmapSize:
		return fmt.Errorf("%w: log2_hashmap_size %d out of range [1, %d]", ErrInvalidConfig, c.Log2HashmapSize, MaxLog2HashmapSize)
	case c.Kind != Hash && c.Kind != Tiled:
		return fmt.Errorf("%w: %w: %d", ErrInvalidConfig, ErrUnknownKind, int(c.Kind))
	}

	if c.DesiredResolution > 0 {
		if c.NumLevels < 2 {
			return fmt.Errorf("%w: desired_resolution needs at least 2 levels", ErrInvalidConfig)
		}
		if c.DesiredResolution < c.BaseResolution {
			return fmt.Errorf("%w: desired_resolution %d below base_resolution %d",
				ErrInvalidConfig, c.DesiredResolution, c.BaseResolution)
		}
		return nil
	}

	if math.IsNaN(c.PerLevelScale) || math.IsInf(c.PerLevelScale, 0) || c.PerLevelScale < 1 {
		return fmt.Errorf("%w: per_level_scale must be finite and >= 1, got %v", ErrInvalidConfig, c.PerLevelScale)
	}
	return nil
}

// Scale returns the per-level growth factor, derived from DesiredResolution
// when that is set.
func (c Config) Scale() float64 {
	if c.DesiredResolution > 0 && c.NumLevels > 1 {
		return math.Exp2(math.Log2(float64(c.DesiredResolution)/float64(c.BaseResolution)) / float64(c.NumLevels-1))
	}
	return c.PerLevelScale
}

// OutputDim is the width of one encoded coordinate: NumLevels * LevelDim.
func (c Config) OutputDim() int {
	return c.NumLevels * c.LevelDim
}

// UsesHalfPrecision reports whether table reads happen in float16.
func (c Config) UsesHalfPrecision() bool {
	return c.HalfPrecision && c.LevelDim%2 == 0
}

// LoadConfig reads a Config from a JSON file. Fields missing from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
