package surface

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"camlink/internal/core/domain"
)

// binding enforces the exclusive-ownership contract shared by every surface:
// exactly one adapter may hold the surface at a time, and the previous holder
// must release before the next binds.
type binding struct {
	mu     sync.Mutex
	holder domain.Protocol
	bound  bool
}

func (b *binding) Bind(p domain.Protocol) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound {
		return fmt.Errorf("%w: held by %s", domain.ErrSurfaceBound, b.holder)
	}
	b.bound = true
	b.holder = p
	return nil
}

func (b *binding) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bound = false
	b.holder = ""
}

// NullSurface discards frames and counts them. Used for headless viewing,
// where only the connection state matters.
type NullSurface struct {
	binding
	frames uint64
	bytes  uint64
}

func NewNullSurface() *NullSurface { return &NullSurface{} }

func (s *NullSurface) WriteFrame(f domain.Frame) error {
	atomic.AddUint64(&s.frames, 1)
	atomic.AddUint64(&s.bytes, uint64(len(f.Data)))
	return nil
}

// Frames returns how many frames have been written since creation.
func (s *NullSurface) Frames() uint64 { return atomic.LoadUint64(&s.frames) }

// Bytes returns the total payload size written since creation.
func (s *NullSurface) Bytes() uint64 { return atomic.LoadUint64(&s.bytes) }

// FileSurface appends every payload to a file, init segment first, so a
// received stream can be inspected offline.
type FileSurface struct {
	binding
	mu   sync.Mutex
	file *os.File
}

func NewFileSurface(path string) (*FileSurface, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open surface file: %w", err)
	}
	return &FileSurface{file: f}, nil
}

func (s *FileSurface) WriteFrame(f domain.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("%w: file closed", domain.ErrSurfaceUnavailable)
	}
	if _, err := s.file.Write(f.Data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *FileSurface) CloseFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
