// Package store persists enrolled identities and serves in-memory snapshots of them to the matcher.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/andresmejia3/rollcall/internal/types"
)

// Backend is a durable home for the ordered enrollment sequence.
type Backend interface {
	// Load returns every entry in insertion order. A backend with nothing
	// persisted yet returns an empty slice, never a "not found" error.
	Load(ctx context.Context) ([]types.LabeledDescriptor, error)
	// Append persists one more entry after all existing ones.
	Append(ctx context.Context, entry types.LabeledDescriptor) error
	// Reset removes every entry.
	Reset(ctx context.Context) error
	Close(ctx context.Context) error
}

// SingleFaceDetector is the part of the oracle enrollment needs.
type SingleFaceDetector interface {
	DetectOne(ctx context.Context, frame types.Frame) (*types.Detection, error)
}

// Store caches the enrollment sequence in memory on top of a Backend.
//
// Readers get an immutable snapshot; appends replace the cached slice rather than
// growing it in place, so a snapshot handed to the matcher never changes underneath it.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu      sync.RWMutex
	entries []types.LabeledDescriptor
}

// Open loads the persisted sequence from backend and returns a ready Store.
func Open(ctx context.Context, backend Backend, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{backend: backend, logger: logger}
	if _, err := s.LoadAll(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadAll re-reads the backend, refreshes the cache and returns the entries.
func (s *Store) LoadAll(ctx context.Context) ([]types.LabeledDescriptor, error) {
	entries, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	if entries == nil {
		entries = []types.LabeledDescriptor{}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.logger.Debug("enrollments loaded", "count", len(entries))
	return entries, nil
}

// Snapshot returns the cached sequence without touching the backend.
func (s *Store) Snapshot() []types.LabeledDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Append persists a new single-sample entry for label. Entries with the same label
// are never merged.
func (s *Store) Append(ctx context.Context, label string, descriptor types.FeatureVector) (types.LabeledDescriptor, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return types.LabeledDescriptor{}, fmt.Errorf("label is required")
	}
	if len(descriptor) == 0 {
		return types.LabeledDescriptor{}, fmt.Errorf("descriptor is empty")
	}

	entry := types.LabeledDescriptor{
		Label:       label,
		Descriptors: []types.FeatureVector{append(types.FeatureVector(nil), descriptor...)},
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Append(ctx, entry); err != nil {
		return types.LabeledDescriptor{}, fmt.Errorf("append enrollment: %w", err)
	}

	next := make([]types.LabeledDescriptor, len(s.entries), len(s.entries)+1)
	copy(next, s.entries)
	s.entries = append(next, entry)

	s.logger.Info("identity enrolled", "label", label, "entries", len(s.entries))
	return entry, nil
}

// Enroll captures one descriptor from a still frame and appends it under label.
// It fails with types.ErrNoFaceDetected, leaving the store untouched, when the
// oracle finds no face.
func (s *Store) Enroll(ctx context.Context, detector SingleFaceDetector, label string, frame types.Frame) (types.LabeledDescriptor, error) {
	if strings.TrimSpace(label) == "" {
		return types.LabeledDescriptor{}, fmt.Errorf("label is required")
	}
	if frame.Empty() {
		return types.LabeledDescriptor{}, types.ErrNoFaceDetected
	}

	det, err := detector.DetectOne(ctx, frame)
	if err != nil {
		return types.LabeledDescriptor{}, fmt.Errorf("detect face: %w", err)
	}
	if det == nil || len(det.Descriptor) == 0 {
		return types.LabeledDescriptor{}, types.ErrNoFaceDetected
	}

	return s.Append(ctx, label, det.Descriptor)
}

// Reset removes every enrollment.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Reset(ctx); err != nil {
		return fmt.Errorf("reset enrollments: %w", err)
	}
	s.entries = []types.LabeledDescriptor{}
	return nil
}

// Close releases the backend.
func (s *Store) Close(ctx context.Context) error {
	return s.backend.Close(ctx)
}
