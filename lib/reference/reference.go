// Package reference validates and normalizes container image references.
package reference

import (
	"github.com/distribution/reference"
)

// NormalizedRef is a validated and normalized image reference.
// It can be either a tagged reference (e.g., "docker.io/library/alpine:latest")
// or a digest reference (e.g., "docker.io/library/alpine@sha256:abc123...").
//
// Its canonical String form is what the store uses as the deduplication and
// metadata key, so two spellings of the same image ("alpine",
// "docker.io/library/alpine:latest") collapse to one entry.
type NormalizedRef struct {
	raw        string
	repository string
	tag        string // empty if digest ref
	digest     string // empty if tag ref
}

// Parse validates and normalizes a user-provided image reference.
// Examples:
//   - "alpine" -> "docker.io/library/alpine:latest"
//   - "alpine:3.18" -> "docker.io/library/alpine:3.18"
//   - "alpine@sha256:abc..." -> "docker.io/library/alpine@sha256:abc..."
func Parse(s string) (*NormalizedRef, error) {
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return nil, err
	}

	ref := &NormalizedRef{
		repository: reference.Domain(named) + "/" + reference.Path(named),
	}

	if canonical, ok := named.(reference.Canonical); ok {
		ref.digest = canonical.Digest().String()
		ref.raw = canonical.String()
		return ref, nil
	}

	// Tagged reference - ensure tag (add :latest if missing)
	tagged := reference.TagNameOnly(named)
	if t, ok := tagged.(reference.Tagged); ok {
		ref.tag = t.Tag()
	}
	ref.raw = tagged.String()

	return ref, nil
}

// String returns the full normalized reference.
func (r *NormalizedRef) String() string {
	return r.raw
}

// Repository returns the repository path without tag or digest.
// Example: "docker.io/library/alpine"
func (r *NormalizedRef) Repository() string {
	return r.repository
}

// Tag returns the tag for a tagged reference, or "" for a digest reference.
func (r *NormalizedRef) Tag() string {
	return r.tag
}

// Digest returns the digest for a digest reference (e.g., "sha256:abc123..."),
// or "" for a tagged reference.
func (r *NormalizedRef) Digest() string {
	return r.digest
}

// IsDigest reports whether this reference pins a digest (@sha256:...).
func (r *NormalizedRef) IsDigest() bool {
	return r.digest != ""
}
