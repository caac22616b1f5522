// Package batch implements the two-phase image-ingest pipeline: a shared
// work queue, a pool of decode workers and a coordinator that drives each
// batch through a probe phase (shape discovery), plan derivation and a
// fetch phase (decode, resize, augment, upload).
package batch

import (
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pdevine/tensor"

	"github.com/pixfeed/pixfeed/api"
	"github.com/pixfeed/pixfeed/device"
	"github.com/pixfeed/pixfeed/format"
)

var ErrBusy = errors.New("batch has registered items, clear it before reconfiguring")

// Batch owns the configuration, the item list, the pack tensors and the
// device stream for one filename list at a time. It persists across fetch
// cycles; Clear resets it for the next list.
type Batch struct {
	opts   api.Options
	bright [9]float32
	elem   device.ElemType

	id  uuid.UUID
	rng *rand.Rand

	q      *queue
	stream *device.Stream

	packHost *tensor.Dense
	packDev  *device.Buffer
	packed   bool
}

func New() *Batch {
	b := &Batch{q: newQueue()}
	b.q.onFetchComplete = b.fetchComplete
	b.Configure(api.DefaultOptions())
	return b
}

func (b *Batch) gpu() bool {
	return b.opts.GPU
}

func (b *Batch) deviceID() int {
	if b.stream != nil {
		return b.stream.Device()
	}
	return device.Current()
}

func (b *Batch) ID() uuid.UUID {
	return b.id
}

// Configure validates and installs the options for the next batch. It is
// only legal between Clear and the first RegisterItem.
func (b *Batch) Configure(opts api.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	b.q.mu.Lock()
	busy := len(b.q.items) > 0
	b.q.mu.Unlock()
	if busy {
		return ErrBusy
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	elem, err := device.ParseElemType(opts.Precision)
	if err != nil {
		return err
	}

	b.opts = opts
	b.bright = opts.BrightnessMatrix()
	b.elem = elem
	b.rng = rand.New(rand.NewSource(seed))
	b.id = uuid.New()
	return nil
}

// RegisterItem appends a filename to the batch in probe state and wakes a
// worker.
func (b *Batch) RegisterItem(name string) *Item {
	return b.q.register(name)
}

// Prefetch collects the probe results, allocates the output tensors,
// derives every item's transform plan and promotes the batch into the
// fetch phase. It returns once the fetch work is handed to the pool.
func (b *Batch) Prefetch() {
	b.q.syncAll()

	items := b.q.items
	n := len(items)
	b.packed = b.opts.Pack

	var packData []float32
	var slab int
	if b.packed {
		h, w, _ := b.opts.FixedResize()
		slab = h * w * 3

		packData = make([]float32, slab*n)
		b.packHost = tensor.New(tensor.WithShape(h, w, 3, n), tensor.WithBacking(packData))

		if b.opts.GPU {
			b.ensureStream()
			b.packDev = device.Alloc(slab*n, b.elem)
			slog.Debug("allocated pack", "shape", format.Shape([4]int{h, w, 3, n}),
				"host", format.HumanBytes(int64(len(packData)*4)), "device", format.HumanBytes(b.packDev.ByteSize()))
		}
	}

	for _, it := range items {
		if it.err != nil {
			continue
		}

		it.Plan = derivePlan(&b.opts, b.bright, it.Shape, b.packed, b.rng)

		if b.packed {
			it.out = packData[it.Index*slab : (it.Index+1)*slab : (it.Index+1)*slab]
			continue
		}

		p := it.Plan
		it.out = make([]float32, p.OutH*p.OutW*p.OutC)
		it.host = tensor.New(tensor.WithShape(p.OutH, p.OutW, p.OutC, 1), tensor.WithBacking(it.out))

		if b.opts.GPU {
			b.ensureStream()
			it.dev = device.Alloc(len(it.out), b.elem)
		}
	}

	b.q.promote()
}

func (b *Batch) ensureStream() {
	if b.stream == nil {
		b.stream = device.NewStream(true)
	}
}

// fetchComplete runs under the queue mutex when the last fetch-phase item
// returns; in packed GPU mode it schedules the whole-pack upload, charging
// any submission error to the returning item.
func (b *Batch) fetchComplete(last *Item) {
	if !b.packed || !b.opts.GPU || b.packDev == nil {
		return
	}

	if err := b.stream.CopyAsync(b.packDev, b.packHost.Data().([]float32)); err != nil && last.err == nil {
		last.setError(CodeTransfer, err)
	}
}

// Sync blocks until every item is ready; in GPU mode it then drains the
// device stream.
func (b *Batch) Sync() error {
	b.q.syncAll()

	if b.opts.GPU && b.stream != nil {
		return b.stream.Synchronize()
	}
	return nil
}

// Result is one relinquished output. In packed mode there is a single
// result owning the pack; otherwise one per item, with Host nil for items
// that errored.
type Result struct {
	Name   string
	Shape  [4]int
	Host   *tensor.Dense
	Device *device.Buffer
	Err    *ItemError
}

// Relinquish transfers ownership of the output tensors to the caller.
func (b *Batch) Relinquish() []Result {
	b.q.mu.Lock()
	items := b.q.items
	b.q.mu.Unlock()

	if b.packed {
		h, w, _ := b.opts.FixedResize()
		res := Result{
			Shape:  [4]int{h, w, 3, len(items)},
			Host:   b.packHost,
			Device: b.packDev,
		}
		b.packHost = nil
		b.packDev = nil
		return []Result{res}
	}

	results := make([]Result, len(items))
	for i, it := range items {
		results[i] = Result{
			Name:  it.Name,
			Shape: [4]int{it.Plan.OutH, it.Plan.OutW, it.Plan.OutC, 1},
			Err:   it.err,
		}
		if it.err == nil {
			results[i].Host = it.host
			results[i].Device = it.dev
		}
		it.host = nil
		it.dev = nil
	}
	return results
}

// Items exposes the current item list for result inspection. The batch
// must be synced first.
func (b *Batch) Items() []*Item {
	b.q.mu.Lock()
	defer b.q.mu.Unlock()
	return b.q.items
}

// Clear drains borrowed items, destroys the item list and releases any
// buffers that were not relinquished.
func (b *Batch) Clear() {
	items := b.q.clear()
	for _, it := range items {
		it.host = nil
		it.dev = nil
		it.out = nil
	}
	b.packHost = nil
	b.packDev = nil
	b.packed = false
}

// Finalize clears the batch and releases the workers and the stream. The
// batch cannot be used afterwards.
func (b *Batch) Finalize() {
	b.q.finalize()
	if b.stream != nil {
		b.stream.Close()
		b.stream = nil
	}
}
