package raster

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svgdeck/internal/errors"
)

const redSquare = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10" width="10" height="10">
<rect x="0" y="0" width="10" height="10" fill="#ff0000"/>
</svg>`

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestNativeRendersAtRequestedSize(t *testing.T) {
	out, err := NewNative().Rasterize(context.Background(), []byte(redSquare), 40, 20)
	require.NoError(t, err)

	img := decodePNG(t, out)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())

	r, g, _, a := img.At(5, 10).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, g>>8, uint32(50))
	assert.Greater(t, a>>8, uint32(200))
}

func TestNativeRejectsBadInput(t *testing.T) {
	_, err := NewNative().Rasterize(context.Background(), []byte(redSquare), 0, 10)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = NewNative().Rasterize(context.Background(), []byte("<svg><g></svg>"), 10, 10)
	require.Error(t, err)

	_, err = NewNative().Rasterize(context.Background(), []byte(redSquare), 100000, 100000)
	require.ErrorIs(t, err, ErrSizeTooLarge)
}

func TestCommandRejectsOversizedCanvas(t *testing.T) {
	c := &Command{Path: "/nonexistent/converter", Args: DefaultCommandArgs()}
	_, err := c.Rasterize(context.Background(), []byte(redSquare), MaxSidePx+1, 10)
	require.ErrorIs(t, err, ErrSizeTooLarge)
}

func TestFitPNGRescales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	same, err := fitPNG(buf.Bytes(), 4, 4)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), same)

	scaled, err := fitPNG(buf.Bytes(), 8, 6)
	require.NoError(t, err)
	img := decodePNG(t, scaled)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
}

func TestCommandUsesExternalProcess(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	src := image.NewRGBA(image.Rect(0, 0, 3, 3))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	file := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, os.WriteFile(file, buf.Bytes(), 0o644))

	cmd, err := NewCommand("cat", []string{file})
	require.NoError(t, err)
	out, err := cmd.Rasterize(context.Background(), []byte(redSquare), 6, 6)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 6), decodePNG(t, out).Bounds())

	_, err = NewCommand("definitely-not-a-rasterizer-binary", nil)
	require.Error(t, err)
}

func TestExpandArgs(t *testing.T) {
	got := expandArgs(DefaultCommandArgs(), 1280, 720)
	assert.Equal(t, []string{"--width", "1280", "--height", "720", "--format", "png"}, got)
}

func TestCachedSharesRenders(t *testing.T) {
	var calls atomic.Int32
	stub := Func(func(ctx context.Context, svg []byte, w, h int) ([]byte, error) {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return []byte("png"), nil
	})
	cached, err := NewCached(stub, 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := cached.Rasterize(context.Background(), []byte("a"), 10, 10)
			assert.NoError(t, err)
			assert.Equal(t, []byte("png"), out)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())

	_, err = cached.Rasterize(context.Background(), []byte("a"), 20, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, cached.Len())
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	var calls atomic.Int32
	stub := Func(func(ctx context.Context, svg []byte, w, h int) ([]byte, error) {
		calls.Add(1)
		return nil, stderrors.New("boom")
	})
	cached, err := NewCached(stub, 4)
	require.NoError(t, err)
	_, err = cached.Rasterize(context.Background(), []byte("a"), 1, 1)
	require.Error(t, err)
	_, err = cached.Rasterize(context.Background(), []byte("a"), 1, 1)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Zero(t, cached.Len())
}

func TestGuardedOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	stub := Func(func(ctx context.Context, svg []byte, w, h int) ([]byte, error) {
		calls.Add(1)
		return nil, stderrors.New("render failed")
	})
	guarded := NewGuarded(stub, errors.NewCircuitBreaker("test", errors.CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Hour}))

	for i := 0; i < 4; i++ {
		_, err := guarded.Rasterize(context.Background(), nil, 1, 1)
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, errors.StateOpen, guarded.State())

	_, err := guarded.Rasterize(context.Background(), nil, 1, 1)
	require.ErrorIs(t, err, errors.ErrCircuitOpen)
}

func TestProbe(t *testing.T) {
	r, backend, err := Probe(Config{Backend: "none"}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Equal(t, BackendNone, backend)

	_, _, err = Probe(Config{Backend: "gpu"}, nil, nil)
	require.Error(t, err)

	r, backend, err = Probe(Config{Backend: "native", CacheSize: 2}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, BackendNative, backend)
	out, err := r.Rasterize(context.Background(), []byte(redSquare), 8, 8)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), decodePNG(t, out).Bounds())

	r, backend, err = Probe(Config{Backend: "command", Command: "definitely-not-a-rasterizer-binary"}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Equal(t, BackendNone, backend)

	r, backend, err = Probe(Config{Backend: "auto", Command: "definitely-not-a-rasterizer-binary"}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, BackendNative, backend)
}
