package verify

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

// FailureArtifact captures everything needed to replay a tolerance mismatch
// offline: the kernel, the failing coordinate, both values, and the full
// configuration including the fill seed.
type FailureArtifact struct {
	Kernel    string  `cbor:"kernel"`
	Token     int     `cbor:"token"`
	Row       int     `cbor:"row"`
	Got       float64 `cbor:"got"`
	Want      float64 `cbor:"want"`
	NumTokens uint32  `cbor:"num_tokens"`
	NumCols   uint32  `cbor:"num_cols"`
	NumRows   uint32  `cbor:"num_rows"`
	GroupSize int     `cbor:"group_size"`
	Seed      uint64  `cbor:"seed"`
}

func writeArtifact(dir string, a FailureArtifact) (string, error) {
	data, err := cbor.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("artifact encode: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_t%d_r%d.cbor", a.Kernel, a.Token, a.Row))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
