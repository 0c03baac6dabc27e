package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/onkernel/layerstore/lib/metadata"
	"github.com/onkernel/layerstore/lib/reference"
)

// pendingPull is the shared result cell for one in-flight pull. The pull that
// created it settles it exactly once; any number of requests may wait on it.
type pendingPull struct {
	done  chan struct{}
	image *metadata.Image
	err   error
}

func newPendingPull() *pendingPull {
	return &pendingPull{done: make(chan struct{})}
}

func (p *pendingPull) settle(img *metadata.Image, err error) {
	p.image = img
	p.err = err
	close(p.done)
}

// wait blocks until the pull settles or ctx ends. A caller that stops
// waiting does not affect the pull.
func (p *pendingPull) wait(ctx context.Context) (*metadata.Image, error) {
	select {
	case <-p.done:
		return p.image, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve returns the cached image if the metadata lookup hit, and otherwise
// ensures exactly one pull is in flight for ref, attaching to it. Every
// concurrent caller for the same reference receives the same eventual image
// or failure.
func (s *store) resolve(ctx context.Context, ref *reference.NormalizedRef, cached *metadata.Image) (*metadata.Image, error) {
	if cached != nil {
		return cached, nil
	}

	staging, err := os.MkdirTemp(s.paths.StagingRoot(), "pull-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	key := ref.String()

	s.mu.Lock()
	if pending, ok := s.pulling[key]; ok {
		s.mu.Unlock()
		// The in-flight pull owns its own staging directory; the one we
		// just made was never claimed.
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			s.logger.Warn("failed to remove staging directory",
				"dir", staging, "error", rmErr)
		}
		return pending.wait(ctx)
	}

	pending := newPendingPull()
	s.pulling[key] = pending
	s.mu.Unlock()

	// The pull is detached from the request that started it: followers may
	// stop waiting, but the pull runs to completion.
	go s.runPull(context.WithoutCancel(ctx), ref, staging, pending)

	return pending.wait(ctx)
}

// runPull drives one pull to completion, then unconditionally clears the
// pending entry and staging directory before settling the waiters.
func (s *store) runPull(ctx context.Context, ref *reference.NormalizedRef, staging string, pending *pendingPull) {
	img, err := s.pull(ctx, ref, staging)

	s.mu.Lock()
	delete(s.pulling, ref.String())
	s.mu.Unlock()

	if rmErr := os.RemoveAll(staging); rmErr != nil {
		// A stale staging directory cannot corrupt future pulls; its name
		// is never reused.
		s.logger.Warn("failed to remove staging directory",
			"dir", staging, "error", rmErr)
	}

	pending.settle(img, err)
}

// pull runs the pull -> install -> commit pipeline for one reference.
// Metadata is committed only after every layer install succeeded.
func (s *store) pull(ctx context.Context, ref *reference.NormalizedRef, staging string) (*metadata.Image, error) {
	start := time.Now()

	layerIDs, err := s.puller.Pull(ctx, ref, staging)
	if err != nil {
		s.metrics.RecordPull(ctx, "pull_failed", time.Since(start))
		return nil, fmt.Errorf("%w: %q: %w", ErrPull, ref.String(), err)
	}

	if err := s.installLayers(staging, layerIDs); err != nil {
		s.metrics.RecordPull(ctx, "install_failed", time.Since(start))
		return nil, err
	}

	img, err := s.metadata.Put(ctx, ref, layerIDs)
	if err != nil {
		s.metrics.RecordPull(ctx, "commit_failed", time.Since(start))
		return nil, fmt.Errorf("%w: %q: %w", ErrMetadataCommit, ref.String(), err)
	}

	s.metrics.RecordPull(ctx, "ok", time.Since(start))
	return img, nil
}
