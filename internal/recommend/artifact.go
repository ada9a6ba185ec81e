package recommend

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Artifact is the persisted model: the classifier together with the
// scaler it was trained behind. The two are only ever stored and loaded
// as one document.
type Artifact struct {
	Version      string    `json:"version"`
	FeatureNames []string  `json:"feature_names"`
	Scaler       Scaler    `json:"scaler"`
	Model        Softmax   `json:"model"`
	TrainedAt    time.Time `json:"trained_at"`
	Samples      int       `json:"samples"`
	Checksum     string    `json:"checksum"`
}

const artifactSchemaURL = "schema://flagpost/model-artifact.json"

const artifactSchema = `{
  "type": "object",
  "required": ["version", "feature_names", "scaler", "model", "trained_at", "samples", "checksum"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "feature_names": {"type": "array", "minItems": 1, "items": {"type": "string"}},
    "scaler": {
      "type": "object",
      "required": ["mean", "scale"],
      "properties": {
        "mean": {"type": "array", "items": {"type": "number"}},
        "scale": {"type": "array", "items": {"type": "number", "exclusiveMinimum": 0}}
      }
    },
    "model": {
      "type": "object",
      "required": ["classes", "weights"],
      "properties": {
        "classes": {"type": "array", "minItems": 2, "items": {"type": "integer", "minimum": 1, "maximum": 5}},
        "weights": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}}
      }
    },
    "trained_at": {"type": "string"},
    "samples": {"type": "integer", "minimum": 1},
    "checksum": {"type": "string", "pattern": "^[0-9a-f]{64}$"}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func artifactValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(artifactSchema), &doc); err != nil {
			schemaErr = fmt.Errorf("parse artifact schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(artifactSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add artifact schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(artifactSchemaURL)
	})
	return compiledSchema, schemaErr
}

// checksum hashes the artifact with an empty checksum field
func (a Artifact) checksum() (string, error) {
	a.Checksum = ""
	raw, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// EncodeArtifact stamps the checksum and returns the document bytes
func EncodeArtifact(a *Artifact) ([]byte, error) {
	sum, err := a.checksum()
	if err != nil {
		return nil, fmt.Errorf("checksum artifact: %w", err)
	}
	a.Checksum = sum
	raw, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return raw, nil
}

// DecodeArtifact parses and verifies an artifact document. Any failure
// wraps domain.ErrModelArtifactCorrupt.
func DecodeArtifact(raw []byte) (*Artifact, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, corrupt("invalid JSON: %v", err)
	}

	validator, err := artifactValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(doc); err != nil {
		return nil, corrupt("schema validation failed: %v", err)
	}

	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, corrupt("decode: %v", err)
	}

	sum, err := a.checksum()
	if err != nil {
		return nil, corrupt("checksum: %v", err)
	}
	if sum != a.Checksum {
		return nil, corrupt("checksum mismatch")
	}

	if err := a.checkShape(); err != nil {
		return nil, err
	}
	return &a, nil
}

// checkShape verifies that the scaler and the classifier agree with each
// other and with the current feature layout.
func (a *Artifact) checkShape() error {
	if !slices.Equal(a.FeatureNames, FeatureNames) {
		return corrupt("feature layout %v does not match %v", a.FeatureNames, FeatureNames)
	}
	dim := len(FeatureNames)
	if len(a.Scaler.Mean) != dim || len(a.Scaler.Scale) != dim {
		return corrupt("scaler has %d/%d entries, want %d", len(a.Scaler.Mean), len(a.Scaler.Scale), dim)
	}
	if len(a.Model.Weights) != len(a.Model.Classes) {
		return corrupt("%d weight rows for %d classes", len(a.Model.Weights), len(a.Model.Classes))
	}
	for k, row := range a.Model.Weights {
		if len(row) != dim+1 {
			return corrupt("weight row %d has %d entries, want %d", k, len(row), dim+1)
		}
		for _, w := range row {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return corrupt("weight row %d is not finite", k)
			}
		}
	}
	return nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrModelArtifactCorrupt, fmt.Sprintf(format, args...))
}
