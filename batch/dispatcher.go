package batch

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/pixfeed/pixfeed/api"
	"github.com/pixfeed/pixfeed/envconfig"
	"github.com/pixfeed/pixfeed/reader"
)

// Dispatcher is the process-scoped service in front of the pipeline. It
// owns the worker pool and the current batch, reconciles each request
// against any pending prefetch and publishes results.
type Dispatcher struct {
	// NewReader builds the per-worker reader. Overridable before the
	// first Fetch.
	NewReader func() reader.Reader

	sem *semaphore.Weighted

	mu       sync.Mutex
	b        *Batch
	wg       sync.WaitGroup
	poolSize int

	pending     []string
	pendingOpts api.Options
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		NewReader: reader.New,
		sem:       semaphore.NewWeighted(1),
	}
}

// resolveOptions layers request options over the environment-driven
// defaults.
func resolveOptions(req *api.FetchRequest) (api.Options, error) {
	opts := api.DefaultOptions()
	opts.NumThreads = envconfig.NumThreads
	opts.Seed = envconfig.Seed

	if len(req.Options) > 0 {
		if err := opts.FromMap(req.Options); err != nil {
			return opts, fmt.Errorf("%w: %s", api.ErrInvalidOption, err)
		}
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// rebuildPool tears down the old pool and batch and starts n workers on a
// fresh batch.
func (d *Dispatcher) rebuildPool(n int) {
	if d.b != nil {
		d.b.Finalize()
		d.wg.Wait()
	}

	slog.Debug("building worker pool", "workers", n)
	d.b = New()
	d.poolSize = n
	d.pending = nil

	for i := range n {
		w := newWorker(i, d.b, d.NewReader())
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			w.run()
		}()
	}
}

// sameOptions compares two option records ignoring the prefetch flag,
// which only chooses when the caller collects.
func sameOptions(a, b api.Options) bool {
	a.Prefetch = false
	b.Prefetch = false
	return reflect.DeepEqual(a, b)
}

// Fetch runs one request through the pipeline. A request whose filenames
// match the pending prefetch in order, with the same options apart from the
// prefetch flag, reuses the work already done; anything else clears the
// batch and starts over. With the prefetch option
// set it returns as soon as background work is underway.
func (d *Dispatcher) Fetch(ctx context.Context, req *api.FetchRequest) (*api.FetchResponse, error) {
	opts, err := resolveOptions(req)
	if err != nil {
		return nil, err
	}

	return d.FetchWithOptions(ctx, req.Filenames, opts)
}

// FetchWithOptions is Fetch for callers that already hold a validated
// option record, such as the CLI.
func (d *Dispatcher) FetchWithOptions(ctx context.Context, filenames []string, opts api.Options) (*api.FetchResponse, error) {
	if len(filenames) == 0 {
		return nil, fmt.Errorf("%w: no filenames", api.ErrInvalidOption)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.b == nil || opts.NumThreads != d.poolSize {
		d.rebuildPool(opts.NumThreads)
	}

	reuse := d.pending != nil &&
		slices.Equal(d.pending, filenames) &&
		sameOptions(d.pendingOpts, opts)

	if !reuse {
		d.b.Clear()
		if err := d.b.Configure(opts); err != nil {
			return nil, err
		}

		for _, name := range filenames {
			d.b.RegisterItem(name)
		}
		d.b.Prefetch()

		d.pending = slices.Clone(filenames)
		d.pendingOpts = opts
	}

	level := slog.LevelDebug
	if opts.Verbose > 0 {
		level = slog.LevelInfo
	}
	slog.Log(ctx, level, "dispatch", "files", len(filenames), "reuse", reuse,
		"workers", d.poolSize, "pack", opts.Pack, "gpu", opts.GPU)

	resp := &api.FetchResponse{BatchID: d.b.ID().String()}
	if opts.Prefetch {
		return resp, nil
	}

	if err := d.b.Sync(); err != nil {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("device stream: %s", err))
	}

	for _, res := range d.b.Relinquish() {
		t := api.Tensor{
			Shape:  res.Shape,
			Dtype:  api.PrecisionFloat32,
			Device: res.Device != nil,
		}
		if res.Device != nil {
			t.Dtype = res.Device.ElemType().String()
		}

		if res.Err != nil {
			slog.Warn("skipping item", "name", res.Name, "error", res.Err.Message)
			t.Error = res.Err.Message
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("%s: %s", res.Name, res.Err.Message))
		} else if res.Host != nil {
			t.Data = float32Bytes(res.Host.Data().([]float32))
		}

		resp.Tensors = append(resp.Tensors, t)
	}

	d.b.Clear()
	d.pending = nil
	return resp, nil
}

// Close finalizes the batch and joins the workers. Wired to process exit
// by the callers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.b != nil {
		d.b.Finalize()
		d.wg.Wait()
		d.b = nil
		d.poolSize = 0
		d.pending = nil
	}
}

func float32Bytes(src []float32) []byte {
	out := make([]byte, len(src)*4)
	for i, v := range src {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
