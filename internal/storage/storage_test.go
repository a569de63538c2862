package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/link-indicator/internal/gpio"
)

func TestFixedRegionDefaults(t *testing.T) {
	r := FixedRegion(DefaultFixedStart, DefaultFixedSize, DefaultPageSize)
	assert.Equal(t, uint32(0xF0000), r.Start)
	assert.Equal(t, uint32(4), r.Pages)
	assert.Equal(t, uint32(0xF4000), r.End())
	require.NoError(t, r.Validate())
}

func TestFixedRegionRoundsUpPartialPage(t *testing.T) {
	r := FixedRegion(0x1000, 0x1800, 0x1000)
	assert.Equal(t, uint32(2), r.Pages)
	assert.Equal(t, uint32(0x3000), r.End())
}

func TestTailRegionDefaults(t *testing.T) {
	r := TailRegion(DefaultFlashSize, DefaultPageSize, DefaultTailPages)
	assert.Equal(t, uint32(0x7C000), r.Start)
	assert.Equal(t, uint32(DefaultFlashSize), r.End())
	require.NoError(t, r.Validate())
}

func TestRegionValidate(t *testing.T) {
	tests := []struct {
		name   string
		region Region
	}{
		{"zero page size", Region{Start: 0, PageSize: 0, Pages: 1}},
		{"zero pages", Region{Start: 0, PageSize: 4096, Pages: 0}},
		{"unaligned", Region{Start: 100, PageSize: 4096, Pages: 1}},
		{"wraps", TailRegion(0x1000, 0x1000, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.region.Validate())
		})
	}
}

func noSleep(sleeps *int) Sleeper {
	return func(ctx context.Context, d time.Duration) error {
		*sleeps++
		return ctx.Err()
	}
}

func held(n int) []bool {
	s := make([]bool, n)
	for i := range s {
		s[i] = true
	}
	return s
}

func TestShouldClearHeldForThirtySamples(t *testing.T) {
	var sleeps int
	button := gpio.NewFakeButton(held(30))

	ok, err := ShouldClear(context.Background(), button, DefaultHold, DefaultSample, noSleep(&sleeps))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 30, button.Reads)
	assert.Equal(t, 30, sleeps)
}

func TestShouldClearReleasedEarly(t *testing.T) {
	var sleeps int
	samples := append(held(12), false)
	button := gpio.NewFakeButton(samples)

	ok, err := ShouldClear(context.Background(), button, DefaultHold, DefaultSample, noSleep(&sleeps))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 13, button.Reads)
	assert.Equal(t, 12, sleeps)
}

func TestShouldClearNotPressed(t *testing.T) {
	var sleeps int
	button := gpio.NewFakeButton([]bool{false})

	ok, err := ShouldClear(context.Background(), button, DefaultHold, DefaultSample, noSleep(&sleeps))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, sleeps)
}

func TestShouldClearReadErrorCountsAsReleased(t *testing.T) {
	var sleeps int
	button := gpio.NewFakeButton(held(30))
	button.ReadError = errors.New("line busy")

	ok, err := ShouldClear(context.Background(), button, DefaultHold, DefaultSample, noSleep(&sleeps))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShouldClearCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var sleeps int

	ok, err := ShouldClear(ctx, gpio.NewFakeButton(held(30)), DefaultHold, DefaultSample, noSleep(&sleeps))
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClearErasesEveryPage(t *testing.T) {
	region := TailRegion(DefaultFlashSize, DefaultPageSize, DefaultTailPages)
	eraser := &FakeEraser{}

	require.NoError(t, Clear(region, eraser))
	want := []Span{
		{0x7C000, 0x7D000},
		{0x7D000, 0x7E000},
		{0x7E000, 0x7F000},
		{0x7F000, 0x80000},
	}
	assert.Equal(t, want, eraser.Erased)
}

func TestClearAbortsOnFirstFailure(t *testing.T) {
	region := FixedRegion(DefaultFixedStart, DefaultFixedSize, DefaultPageSize)
	cause := errors.New("flash busy")
	eraser := &FakeEraser{FailAt: 0xF1000, FailErr: cause}

	err := Clear(region, eraser)
	require.Error(t, err)

	var ee *EraseError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, uint32(1), ee.Page)
	assert.Equal(t, uint32(0xF1000), ee.Addr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 2, eraser.Calls, "no erase after the failing page")
	assert.Len(t, eraser.Erased, 1)
}

func TestClearRejectsInvalidRegion(t *testing.T) {
	eraser := &FakeEraser{}
	assert.Error(t, Clear(Region{PageSize: 4096}, eraser))
	assert.Zero(t, eraser.Calls)
}

func TestRunOutcomes(t *testing.T) {
	region := TailRegion(DefaultFlashSize, DefaultPageSize, DefaultTailPages)

	tests := []struct {
		name    string
		samples []bool
		failErr error
		want    Outcome
		wantErr bool
		erases  int
	}{
		{"not held", []bool{false}, nil, Skipped, false, 0},
		{"held", held(30), nil, Cleared, false, 4},
		{"held then erase fails", held(30), errors.New("boom"), Failed, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sleeps int
			eraser := &FakeEraser{FailAt: region.Start, FailErr: tt.failErr}
			cfg := Config{Region: region, Hold: DefaultHold, Sample: DefaultSample, Sleep: noSleep(&sleeps)}

			got, err := Run(context.Background(), cfg, gpio.NewFakeButton(tt.samples), eraser)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, eraser.Erased, tt.erases)
		})
	}
}

func TestForceIgnoresButton(t *testing.T) {
	eraser := &FakeEraser{}
	require.NoError(t, Force(FixedRegion(0, 0x2000, 0x1000), eraser))
	assert.Len(t, eraser.Erased, 2)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "SKIPPED", Skipped.String())
	assert.Equal(t, "CLEARED", Cleared.String())
	assert.Equal(t, "FAILED", Failed.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}

func TestFlashImageEraseFillsPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 0x4000), 0o644))

	img, err := OpenFlashImage(path, 0x4000)
	require.NoError(t, err)
	defer img.Close()

	_, err = img.WriteAt([]byte{1, 2, 3, 4}, 0x1000)
	require.NoError(t, err)

	require.NoError(t, Clear(FixedRegion(0x1000, 0x1000, 0x1000), img))

	page := make([]byte, 0x1000)
	_, err = img.ReadAt(page, 0x1000)
	require.NoError(t, err)
	for i, b := range page {
		if b != 0xFF {
			t.Fatalf("byte %d: got 0x%02X, want 0xFF", i, b)
		}
	}

	// Neighbouring pages are untouched.
	before := make([]byte, 4)
	_, err = img.ReadAt(before, 0x0FFC)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, before)
}

func TestFlashImageGrowsErased(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")

	img, err := OpenFlashImage(path, 0x2000)
	require.NoError(t, err)
	assert.Equal(t, int64(0x2000), img.Size())

	b := make([]byte, 16)
	_, err = img.ReadAt(b, 0x1FF0)
	require.NoError(t, err)
	for _, v := range b {
		assert.Equal(t, byte(0xFF), v)
	}
	require.NoError(t, img.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0x2000), info.Size())
}

func TestFlashImageOutOfRange(t *testing.T) {
	img, err := OpenFlashImage(filepath.Join(t.TempDir(), "flash.bin"), 0x1000)
	require.NoError(t, err)
	defer img.Close()

	assert.ErrorIs(t, img.Erase(0x1000, 0x2000), ErrOutOfRange)
	assert.ErrorIs(t, img.Erase(0x800, 0x400), ErrOutOfRange)

	err = Clear(FixedRegion(DefaultFixedStart, DefaultFixedSize, DefaultPageSize), img)
	var ee *EraseError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, uint32(0), ee.Page)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestFlashImageClosed(t *testing.T) {
	img, err := OpenFlashImage(filepath.Join(t.TempDir(), "flash.bin"), 0x1000)
	require.NoError(t, err)
	require.NoError(t, img.Close())
	require.NoError(t, img.Close())

	assert.ErrorIs(t, img.Erase(0, 0x1000), os.ErrClosed)
}

func TestFlashImageRejectsBadSize(t *testing.T) {
	_, err := OpenFlashImage(filepath.Join(t.TempDir(), "flash.bin"), 0)
	assert.Error(t, err)
}
