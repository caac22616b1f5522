package batch

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixfeed/pixfeed/api"
	"github.com/pixfeed/pixfeed/reader"
)

type countingReader struct {
	inner   reader.Reader
	probes  *atomic.Int64
	decodes *atomic.Int64
}

func (c countingReader) ProbeShape(path string) (reader.Shape, error) {
	c.probes.Add(1)
	return c.inner.ProbeShape(path)
}

func (c countingReader) DecodePixels(path string, dst []float32, shape reader.Shape) error {
	c.decodes.Add(1)
	return c.inner.DecodePixels(path, dst, shape)
}

func TestDispatcherFetch(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeTestPNG(t, dir, "a.png", 24, 18),
		writeTestPNG(t, dir, "b.png", 18, 24),
	}

	d := NewDispatcher()
	defer d.Close()

	opts := api.DefaultOptions()
	opts.NumThreads = 4
	opts.Resize = []int{16, 16}
	opts.Pack = true
	opts.Seed = 1

	resp, err := d.FetchWithOptions(context.Background(), files, opts)
	require.NoError(t, err)
	require.Len(t, resp.Tensors, 1)

	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, [4]int{16, 16, 3, 2}, resp.Tensors[0].Shape)
	assert.Equal(t, api.PrecisionFloat32, resp.Tensors[0].Dtype)
	assert.Len(t, resp.Tensors[0].Data, 16*16*3*2*4)
	assert.Empty(t, resp.Warnings)
}

func TestDispatcherPrefetchReuse(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeTestPNG(t, dir, "a.png", 12, 12),
		writeTestPNG(t, dir, "b.png", 12, 12),
	}

	var probes, decodes atomic.Int64

	d := NewDispatcher()
	d.NewReader = func() reader.Reader {
		return countingReader{inner: reader.New(), probes: &probes, decodes: &decodes}
	}
	defer d.Close()

	opts := api.DefaultOptions()
	opts.NumThreads = 2
	opts.Resize = []int{8, 8}
	opts.Seed = 4

	opts.Prefetch = true
	resp, err := d.FetchWithOptions(context.Background(), files, opts)
	require.NoError(t, err)
	assert.Empty(t, resp.Tensors)

	opts.Prefetch = false
	resp, err = d.FetchWithOptions(context.Background(), files, opts)
	require.NoError(t, err)
	require.Len(t, resp.Tensors, 2)

	// the collect call reused the prefetched work
	assert.Equal(t, int64(2), probes.Load())
	assert.Equal(t, int64(2), decodes.Load())

	// a third call starts from scratch
	_, err = d.FetchWithOptions(context.Background(), files, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(4), probes.Load())
	assert.Equal(t, int64(4), decodes.Load())
}

func TestDispatcherNoReuseOnChangedOptions(t *testing.T) {
	dir := t.TempDir()
	files := []string{writeTestPNG(t, dir, "a.png", 12, 12)}

	var probes, decodes atomic.Int64

	d := NewDispatcher()
	d.NewReader = func() reader.Reader {
		return countingReader{inner: reader.New(), probes: &probes, decodes: &decodes}
	}
	defer d.Close()

	opts := api.DefaultOptions()
	opts.NumThreads = 2
	opts.Resize = []int{8, 8}
	opts.Seed = 4
	opts.Prefetch = true

	_, err := d.FetchWithOptions(context.Background(), files, opts)
	require.NoError(t, err)

	opts.Prefetch = false
	opts.Flip = true
	_, err = d.FetchWithOptions(context.Background(), files, opts)
	require.NoError(t, err)

	// the option change forced a fresh probe; the first batch's decode
	// may or may not have run before it was cleared
	assert.Equal(t, int64(2), probes.Load())
	assert.GreaterOrEqual(t, decodes.Load(), int64(1))
	assert.LessOrEqual(t, decodes.Load(), int64(2))
}

func TestDispatcherWarnsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	a := writeTestPNG(t, dir, "a.png", 10, 10)
	missing := dir + "/MISSING.png"
	c := writeTestPNG(t, dir, "c.png", 10, 10)

	d := NewDispatcher()
	defer d.Close()

	opts := api.DefaultOptions()
	opts.NumThreads = 2
	opts.Resize = []int{4, 4}
	opts.Seed = 6

	resp, err := d.FetchWithOptions(context.Background(), []string{a, missing, c}, opts)
	require.NoError(t, err)
	require.Len(t, resp.Tensors, 3)

	assert.NotEmpty(t, resp.Tensors[0].Data)
	assert.Empty(t, resp.Tensors[1].Data)
	assert.NotEmpty(t, resp.Tensors[1].Error)
	assert.NotEmpty(t, resp.Tensors[2].Data)

	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "MISSING")
}

func TestDispatcherRebuildsPoolOnThreadChange(t *testing.T) {
	dir := t.TempDir()
	files := []string{writeTestPNG(t, dir, "a.png", 10, 10)}

	d := NewDispatcher()
	defer d.Close()

	opts := api.DefaultOptions()
	opts.NumThreads = 1
	opts.Resize = []int{4, 4}

	_, err := d.FetchWithOptions(context.Background(), files, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, d.poolSize)

	opts.NumThreads = 4
	_, err = d.FetchWithOptions(context.Background(), files, opts)
	require.NoError(t, err)
	assert.Equal(t, 4, d.poolSize)
}

func TestDispatcherRejectsEmptyRequest(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	_, err := d.Fetch(context.Background(), &api.FetchRequest{})
	assert.ErrorIs(t, err, api.ErrInvalidOption)
}

func TestDispatcherRejectsBadOptions(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	_, err := d.Fetch(context.Background(), &api.FetchRequest{
		Filenames: []string{"a.png"},
		Options:   map[string]any{"pack": true},
	})
	assert.ErrorIs(t, err, api.ErrInvalidOption)
}
