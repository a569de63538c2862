package storage

import (
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

const fileModePerm = 0o644

// erased is the value of an erased flash byte.
const erased = 0xFF

// FlashImage is a flash device backed by a memory-mapped file.
type FlashImage struct {
	mu   sync.Mutex
	fd   *os.File
	data mmap.MMap
}

// OpenFlashImage maps path, growing it to size bytes if shorter. Grown
// bytes read as erased.
func OpenFlashImage(path string, size int64) (*FlashImage, error) {
	if size <= 0 {
		return nil, fmt.Errorf("flash image size must be positive, got %d", size)
	}
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, fileModePerm)
	if err != nil {
		return nil, err
	}
	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("stat flash image: %w", err)
	}
	old := info.Size()
	if old < size {
		if err := fd.Truncate(size); err != nil {
			fd.Close()
			return nil, fmt.Errorf("truncate error: %w", err)
		}
	}
	data, err := mmap.Map(fd, mmap.RDWR, 0)
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("mmap error: %w", err)
	}
	if old < size {
		fill(data[old:])
		if err := data.Flush(); err != nil {
			_ = data.Unmap()
			fd.Close()
			return nil, fmt.Errorf("flush: %w", err)
		}
	}
	return &FlashImage{fd: fd, data: data}, nil
}

// Size returns the image length in bytes.
func (f *FlashImage) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.data))
}

// Erase fills [from, to) with 0xFF and flushes it to the file.
func (f *FlashImage) Erase(from, to uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return os.ErrClosed
	}
	if from > to || int64(to) > int64(len(f.data)) {
		return fmt.Errorf("%w: 0x%08X-0x%08X, image is %d bytes", ErrOutOfRange, from, to, len(f.data))
	}
	fill(f.data[from:to])
	if err := f.data.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// ReadAt copies len(p) bytes from addr.
func (f *FlashImage) ReadAt(p []byte, addr int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return 0, os.ErrClosed
	}
	if addr < 0 || addr+int64(len(p)) > int64(len(f.data)) {
		return 0, ErrOutOfRange
	}
	return copy(p, f.data[addr:]), nil
}

// WriteAt copies p to addr. Real flash can only clear bits; the image does
// not model that.
func (f *FlashImage) WriteAt(p []byte, addr int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return 0, os.ErrClosed
	}
	if addr < 0 || addr+int64(len(p)) > int64(len(f.data)) {
		return 0, ErrOutOfRange
	}
	return copy(f.data[addr:], p), nil
}

// Close flushes and unmaps the image.
func (f *FlashImage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return nil
	}
	var errs []error
	if err := f.data.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if err := f.data.Unmap(); err != nil {
		errs = append(errs, fmt.Errorf("unmap: %w", err))
	}
	if err := f.fd.Close(); err != nil {
		errs = append(errs, err)
	}
	f.data = nil
	if len(errs) > 0 {
		return fmt.Errorf("close flash image: %v", errs)
	}
	return nil
}

func fill(b []byte) {
	for i := range b {
		b[i] = erased
	}
}
