package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Artifact describes one generated output file.
type Artifact struct {
	Name          string    `json:"name"`
	Step          string    `json:"step"`
	GeneratedPath string    `json:"generated_path"`
	PublishedPath string    `json:"published_path"`
	Bytes         int64     `json:"bytes"`
	SHA256        string    `json:"sha256"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// NewArtifact describes data about to be written under name.
func NewArtifact(step, name string, data []byte) Artifact {
	sum := sha256.Sum256(data)
	return Artifact{
		Name:        name,
		Step:        step,
		Bytes:       int64(len(data)),
		SHA256:      hex.EncodeToString(sum[:]),
		GeneratedAt: clock.Now().UTC(),
	}
}

// Manifest lists the artifacts of one pipeline run.
type Manifest struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Artifacts   []Artifact `json:"artifacts"`
}

// NewManifest stamps the artifact list with the current time.
func NewManifest(artifacts []Artifact) Manifest {
	if artifacts == nil {
		artifacts = []Artifact{}
	}
	return Manifest{GeneratedAt: clock.Now().UTC(), Artifacts: artifacts}
}
