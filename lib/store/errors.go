package store

import "errors"

// Every failure of a Get pipeline wraps exactly one of these sentinels, so
// callers can classify the stage that failed with errors.Is while the
// underlying cause stays unwrappable.
var (
	ErrUnsupportedImageFormat = errors.New("unsupported image format")
	ErrReferenceParse         = errors.New("invalid image reference")
	ErrPull                   = errors.New("image pull failed")
	ErrInstall                = errors.New("layer install failed")
	ErrMetadataCommit         = errors.New("metadata commit failed")
	ErrManifestRead           = errors.New("manifest read failed")
	ErrManifestParse          = errors.New("manifest parse failed")
)
