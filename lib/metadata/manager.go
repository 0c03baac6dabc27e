// Package metadata persists the mapping from image reference to the ordered
// layer ids that make up the image. It is the durability authority for that
// mapping: the store consults it for cache hits and commits resolved pulls
// through it.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/onkernel/layerstore/lib/paths"
	"github.com/onkernel/layerstore/lib/reference"
)

// Image is the durable record of a resolved image: its normalized reference
// and the ordered layer ids (outermost first, topmost last).
type Image struct {
	Reference string    `json:"reference"`
	LayerIDs  []string  `json:"layer_ids"`
	PulledAt  time.Time `json:"pulled_at"`
}

// Manager owns the reference -> layer-ids mapping.
type Manager interface {
	// Get returns the cached record for ref, or nil if there is none or the
	// caller asked to bypass the cache.
	Get(ctx context.Context, ref *reference.NormalizedRef, forceRefresh bool) (*Image, error)

	// Put durably commits the resolved layer ids for ref, replacing any
	// previous record, and returns the canonical record.
	Put(ctx context.Context, ref *reference.NormalizedRef, layerIDs []string) (*Image, error)

	// Recover loads the persisted records and drops any whose layers are no
	// longer on disk.
	Recover(ctx context.Context) error
}

type manager struct {
	paths  *paths.Paths
	logger *slog.Logger

	mu     sync.RWMutex
	images map[string]*Image
}

// NewManager creates a metadata manager over the given store layout.
// Recover must be called before the first Get to see records from a
// previous run.
func NewManager(p *paths.Paths, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &manager{
		paths:  p,
		logger: logger,
		images: make(map[string]*Image),
	}
}

func (m *manager) Get(ctx context.Context, ref *reference.NormalizedRef, forceRefresh bool) (*Image, error) {
	if forceRefresh {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	img, ok := m.images[ref.String()]
	if !ok {
		return nil, nil
	}
	return img, nil
}

func (m *manager) Put(ctx context.Context, ref *reference.NormalizedRef, layerIDs []string) (*Image, error) {
	img := &Image{
		Reference: ref.String(),
		LayerIDs:  layerIDs,
		PulledAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.images[img.Reference] = img
	if err := m.persistLocked(); err != nil {
		// The in-memory record must not outlive a failed commit.
		delete(m.images, img.Reference)
		return nil, err
	}

	return img, nil
}

func (m *manager) Recover(ctx context.Context) error {
	file, err := readImagesFile(m.paths.ImagesFile())
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.images = make(map[string]*Image, len(file.Images))
	pruned := false
	for _, img := range file.Images {
		if missing := m.missingLayer(img); missing != "" {
			m.logger.Warn("dropping image record with missing layer",
				"reference", img.Reference, "layer_id", missing)
			pruned = true
			continue
		}
		m.images[img.Reference] = img
	}

	if !pruned {
		return nil
	}
	return m.persistLocked()
}

// missingLayer returns the first layer id of img whose store directory does
// not exist, or "" if all layers are present.
func (m *manager) missingLayer(img *Image) string {
	for _, id := range img.LayerIDs {
		if _, err := os.Stat(m.paths.LayerDir(id)); err != nil {
			return id
		}
	}
	return ""
}

// imagesFile is the on-disk shape of the metadata file.
type imagesFile struct {
	Images []*Image `json:"images"`
}

func readImagesFile(path string) (*imagesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &imagesFile{}, nil
		}
		return nil, fmt.Errorf("read images file: %w", err)
	}

	var file imagesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal images file: %w", err)
	}
	return &file, nil
}

// persistLocked writes the image records atomically using temp file + rename.
// Callers must hold m.mu.
func (m *manager) persistLocked() error {
	file := imagesFile{Images: make([]*Image, 0, len(m.images))}
	for _, img := range m.images {
		file.Images = append(file.Images, img)
	}

	data, err := json.MarshalIndent(&file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal images file: %w", err)
	}

	finalPath := m.paths.ImagesFile()
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp images file: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath) // cleanup
		return fmt.Errorf("rename images file: %w", err)
	}

	return nil
}
