package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/andresmejia3/rollcall/internal/types"
)

// ErrSlotEmpty is returned by a Slot that holds no value yet.
var ErrSlotEmpty = errors.New("slot is empty")

// Slot is a single durable key/value cell holding raw bytes.
type Slot interface {
	Get(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
	Close(ctx context.Context) error
}

// SlotBackend stores the whole enrollment sequence as one JSON document in a Slot:
// [{"label": "...", "descriptors": [[...], ...]}, ...]
type SlotBackend struct {
	slot Slot
	mu   sync.Mutex
}

// NewSlotBackend wraps slot.
func NewSlotBackend(slot Slot) *SlotBackend {
	return &SlotBackend{slot: slot}
}

func (b *SlotBackend) Load(ctx context.Context) ([]types.LabeledDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read(ctx)
}

func (b *SlotBackend) read(ctx context.Context) ([]types.LabeledDescriptor, error) {
	data, err := b.slot.Get(ctx)
	if errors.Is(err, ErrSlotEmpty) {
		return []types.LabeledDescriptor{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []types.LabeledDescriptor{}, nil
	}

	var entries []types.LabeledDescriptor
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode enrollment slot: %w", err)
	}
	return entries, nil
}

func (b *SlotBackend) Append(ctx context.Context, entry types.LabeledDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.read(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode enrollment slot: %w", err)
	}
	return b.slot.Put(ctx, data)
}

func (b *SlotBackend) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slot.Delete(ctx)
}

func (b *SlotBackend) Close(ctx context.Context) error {
	return b.slot.Close(ctx)
}

// FileSlot keeps the slot in a local JSON file.
type FileSlot struct {
	path string
}

// NewFileSlot returns a slot backed by path. The parent directory is created on first write.
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

func (f *FileSlot) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSlotEmpty
	}
	return data, err
}

// Put replaces the file atomically via a temp file and rename.
func (f *FileSlot) Put(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".enrollments-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileSlot) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FileSlot) Close(context.Context) error { return nil }
