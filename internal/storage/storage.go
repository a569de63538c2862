// Package storage implements the startup-time storage clear: a hold-button
// gate in front of a page-by-page erase of a configured flash region.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/link-indicator/internal/metrics"
)

// Flash layout defaults.
const (
	DefaultPageSize  = 4096
	DefaultFlashSize = 0x80000

	// DefaultFixedStart and DefaultFixedSize locate the EEPROM emulation window.
	DefaultFixedStart = 0xF0000
	DefaultFixedSize  = 0x4000

	// DefaultTailPages is how many pages at the end of flash hold settings.
	DefaultTailPages = 4
)

// Hold-button defaults: 30 samples 100ms apart.
const (
	DefaultHold   = 3 * time.Second
	DefaultSample = 100 * time.Millisecond
)

// ErrOutOfRange is returned when an erase falls outside the flash image.
var ErrOutOfRange = errors.New("erase out of range")

// Region is a page-aligned span of flash.
type Region struct {
	Start    uint32
	PageSize uint32
	Pages    uint32
}

// FixedRegion covers size bytes from start. A trailing partial page is
// erased in full.
func FixedRegion(start, size, pageSize uint32) Region {
	r := Region{Start: start, PageSize: pageSize}
	if pageSize > 0 {
		r.Pages = (size + pageSize - 1) / pageSize
	}
	return r
}

// TailRegion covers the last pages of a flash of flashSize bytes.
func TailRegion(flashSize, pageSize, pages uint32) Region {
	return Region{
		Start:    flashSize - pages*pageSize,
		PageSize: pageSize,
		Pages:    pages,
	}
}

// End returns the first address past the region.
func (r Region) End() uint32 {
	return r.Start + r.Pages*r.PageSize
}

// PageAddr returns the start address of page i.
func (r Region) PageAddr(i uint32) uint32 {
	return r.Start + i*r.PageSize
}

// Validate checks the region is non-empty and page-aligned.
func (r Region) Validate() error {
	if r.PageSize == 0 {
		return errors.New("region: page size must be positive")
	}
	if r.Pages == 0 {
		return errors.New("region: page count must be positive")
	}
	if r.Start%r.PageSize != 0 {
		return fmt.Errorf("region: start 0x%08X not aligned to %d-byte pages", r.Start, r.PageSize)
	}
	if uint64(r.Start)+uint64(r.Pages)*uint64(r.PageSize) > 1<<32 {
		return errors.New("region: exceeds 32-bit address space")
	}
	return nil
}

func (r Region) String() string {
	return fmt.Sprintf("0x%08X-0x%08X (%d x %d bytes)", r.Start, r.End(), r.Pages, r.PageSize)
}

// Eraser is a block-erase resource.
type Eraser interface {
	// Erase sets [from, to) to the erased state.
	Erase(from, to uint32) error
}

// Button is the hold-to-clear input.
type Button interface {
	Pressed() (bool, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// EraseError reports the page that failed. Pages before it were erased.
type EraseError struct {
	Page uint32
	Addr uint32
	Err  error
}

func (e *EraseError) Error() string {
	return fmt.Sprintf("erase page %d at 0x%08X: %v", e.Page, e.Addr, e.Err)
}

func (e *EraseError) Unwrap() error {
	return e.Err
}

// Outcome is the result of a startup clear.
type Outcome int

const (
	// Skipped means the button was not held. Startup continues.
	Skipped Outcome = iota
	// Cleared means the region was erased. The caller must halt until a power cycle.
	Cleared
	// Failed means an erase failed. The error is logged and startup continues.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "SKIPPED"
	case Cleared:
		return "CLEARED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Config drives Run.
type Config struct {
	Region Region
	Hold   time.Duration
	Sample time.Duration
	Sleep  Sleeper // nil means Sleep
}

// ShouldClear samples button every sample for hold and reports whether it
// stayed pressed throughout. A release is not an error; neither is a read
// failure, which is logged and counted as released. The only error is
// ctx's.
func ShouldClear(ctx context.Context, button Button, hold, sample time.Duration, sleep Sleeper) (bool, error) {
	if sleep == nil {
		sleep = Sleep
	}
	samples := 1
	if sample > 0 && hold > sample {
		samples = int(hold / sample)
	}

	log.Printf("storage: hold button for %v to clear settings", hold)
	for i := 0; i < samples; i++ {
		pressed, err := button.Pressed()
		if err != nil {
			log.Printf("storage: read button: %v", err)
			return false, nil
		}
		if !pressed {
			return false, nil
		}
		if err := sleep(ctx, sample); err != nil {
			return false, err
		}
	}
	log.Printf("storage: clear requested")
	return true, nil
}

// Clear erases region one page at a time and stops at the first failure.
func Clear(region Region, eraser Eraser) error {
	if err := region.Validate(); err != nil {
		return err
	}
	log.Printf("storage: erasing %s", region)
	for i := uint32(0); i < region.Pages; i++ {
		addr := region.PageAddr(i)
		if err := eraser.Erase(addr, addr+region.PageSize); err != nil {
			metrics.IncErasedPage(false)
			return &EraseError{Page: i, Addr: addr, Err: err}
		}
		metrics.IncErasedPage(true)
		log.Printf("storage: page %d at 0x%08X erased", i, addr)
	}
	return nil
}

// Force erases region without consulting the button.
func Force(region Region, eraser Eraser) error {
	log.Printf("storage: force clear")
	return Clear(region, eraser)
}

// Run gates Clear on the hold button. Only a cancelled ctx is returned
// alongside Skipped; an erase failure comes back as Failed with its
// *EraseError.
func Run(ctx context.Context, cfg Config, button Button, eraser Eraser) (Outcome, error) {
	should, err := ShouldClear(ctx, button, cfg.Hold, cfg.Sample, cfg.Sleep)
	if err != nil {
		return Skipped, err
	}
	if !should {
		return Skipped, nil
	}
	if err := Clear(cfg.Region, eraser); err != nil {
		log.Printf("storage: clear failed: %v", err)
		return Failed, err
	}
	log.Printf("storage: clear complete, power cycle required")
	return Cleared, nil
}
