package nn

import (
	"encoding/json"
	"fmt"

	"github.com/born-ml/gridenc/internal/grid"
	"github.com/born-ml/gridenc/internal/monitoring"
	"github.com/born-ml/gridenc/internal/serialization"
	"github.com/born-ml/gridenc/internal/tensor"
	"github.com/google/uuid"
)

// Checkpoint metadata keys and the format tag written by SaveGridEncoder.
const (
	MetaFormat     = "format"
	MetaGridConfig = "grid_config"
	MetaRunID      = "run_id"

	CheckpointFormat = "gridenc/v1"
)

// SaveGridEncoder writes the embedding table, the level offsets and the
// configuration to a SafeTensors file. It returns the run ID stamped into the
// metadata.
func SaveGridEncoder[B tensor.Backend](path string, enc *GridEncoder[B]) (string, error) {
	cfgJSON, err := json.Marshal(enc.Config())
	if err != nil {
		return "", fmt.Errorf("failed to encode grid config: %w", err)
	}

	runID := uuid.NewString()
	meta := map[string]string{
		MetaFormat:     CheckpointFormat,
		MetaGridConfig: string(cfgJSON),
		MetaRunID:      runID,
	}
	if err := serialization.WriteSafeTensors(path, enc.StateDict(), meta); err != nil {
		return "", fmt.Errorf("failed to write checkpoint: %w", err)
	}

	monitoring.Logf("gridenc: saved %d rows to %s (run %s)", enc.Geometry().NumRows(), path, runID)
	return runID, nil
}

// LoadGridEncoder restores an encoder saved by SaveGridEncoder. The stored
// offsets must equal the ones recomputed from the stored configuration, and the
// table must have the shape that configuration implies.
func LoadGridEncoder[B tensor.Backend](path string, backend B, opts ...GridEncoderOption) (enc *GridEncoder[B], err error) {
	reader, err := serialization.NewSafeTensorsReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := reader.VerifyChecksum(); err != nil {
		return nil, err
	}

	meta := reader.Metadata()
	if meta[MetaFormat] != CheckpointFormat {
		return nil, fmt.Errorf("%w: format %q", ErrNotGridCheckpoint, meta[MetaFormat])
	}

	var cfg grid.Config
	if err := json.Unmarshal([]byte(meta[MetaGridConfig]), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode grid config: %w", err)
	}
	geometry, err := grid.NewGeometry(cfg)
	if err != nil {
		return nil, fmt.Errorf("stored grid config: %w", err)
	}

	if err := checkOffsets(reader, geometry, backend); err != nil {
		return nil, err
	}

	table, err := reader.LoadTensor("embeddings", backend)
	if err != nil {
		return nil, err
	}
	want := tensor.Shape{geometry.NumRows(), cfg.LevelDim}
	if table.DType() != tensor.Float32 || !table.Shape().Equal(want) {
		return nil, &serialization.ValidationError{
			Type:    "shape_mismatch",
			Tensor:  "embeddings",
			Details: fmt.Sprintf("got %s%v, configuration needs float32%v", table.DType(), table.Shape(), want),
		}
	}

	options := applyGridEncoderOptions(opts)
	monitoring.Logf("gridenc: loaded %s (run %s)", path, meta[MetaRunID])
	return newGridEncoder(geometry, tensor.New[float32, B](table, backend), backend, options), nil
}

func checkOffsets(reader *serialization.SafeTensorsReader, geometry *grid.Geometry, backend tensor.Backend) error {
	raw, err := reader.LoadTensor("offsets", backend)
	if err != nil {
		return err
	}
	if raw.DType() != tensor.Int32 {
		return &serialization.ValidationError{
			Type:    "dtype_mismatch",
			Tensor:  "offsets",
			Details: fmt.Sprintf("got %s, want int32", raw.DType()),
		}
	}
	stored := make([]int, raw.NumElements())
	for i, v := range raw.AsInt32() {
		stored[i] = int(v)
	}
	if !geometry.MatchesOffsets(stored) {
		return fmt.Errorf("%w: stored %v, computed %v", ErrOffsetsMismatch, stored, geometry.Offsets())
	}
	return nil
}
