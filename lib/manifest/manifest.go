// Package manifest parses the v1 image manifest fragment stored alongside
// each installed layer. The fragment of the topmost layer carries the merged
// runtime configuration for the whole image.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opencontainers/go-digest"
)

var (
	ErrMissingID = errors.New("manifest has no id")
	ErrInvalidID = errors.New("manifest id is not a valid layer id")
)

// Config is the runtime configuration recorded in a v1 manifest.
type Config struct {
	User         string              `json:"User,omitempty"`
	Env          []string            `json:"Env,omitempty"`
	Entrypoint   []string            `json:"Entrypoint,omitempty"`
	Cmd          []string            `json:"Cmd,omitempty"`
	WorkingDir   string              `json:"WorkingDir,omitempty"`
	Labels       map[string]string   `json:"Labels,omitempty"`
	Volumes      map[string]struct{} `json:"Volumes,omitempty"`
	ExposedPorts map[string]struct{} `json:"ExposedPorts,omitempty"`
}

// Manifest is a docker v1 image manifest.
type Manifest struct {
	ID           string    `json:"id"`
	Parent       string    `json:"parent,omitempty"`
	Created      time.Time `json:"created,omitempty"`
	Architecture string    `json:"architecture,omitempty"`
	OS           string    `json:"os,omitempty"`
	Config       *Config   `json:"config,omitempty"`
}

// Parse decodes and validates a raw v1 manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal v1 manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the structural invariants of a manifest.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if err := ValidateLayerID(m.ID); err != nil {
		return err
	}
	if m.Parent != "" {
		if err := ValidateLayerID(m.Parent); err != nil {
			return fmt.Errorf("parent: %w", err)
		}
	}
	return nil
}

// Marshal encodes a manifest the way it is stored on disk.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal v1 manifest: %w", err)
	}
	return data, nil
}

// ValidateLayerID checks that id is a well-formed content-derived layer id
// (the hex encoding of a sha256 digest).
func ValidateLayerID(id string) error {
	if err := digest.NewDigestFromEncoded(digest.SHA256, id).Validate(); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
