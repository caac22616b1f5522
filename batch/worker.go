package batch

import (
	"log/slog"

	"github.com/pixfeed/pixfeed/device"
	"github.com/pixfeed/pixfeed/imageproc"
	"github.com/pixfeed/pixfeed/reader"
)

// worker is a long-lived goroutine that drains the batch queue. It owns its
// reader and scratch buffers; nothing it holds is shared.
type worker struct {
	id int
	b  *Batch
	rd reader.Reader
	sc scratch
}

func newWorker(id int, b *Batch, rd reader.Reader) *worker {
	return &worker{id: id, b: b, rd: rd}
}

func (w *worker) run() {
	defer w.sc.release()

	for {
		it := w.b.q.borrowNext()
		if it == nil {
			return
		}

		// config is frozen while any item is outstanding, so the
		// device check is safe here
		if w.b.gpu() {
			if dev := w.b.deviceID(); dev != device.Current() {
				device.Adopt(dev)
			}
		}

		if it.err == nil {
			switch it.state {
			case StateProbe:
				w.probe(it)
			case StateFetch:
				w.fetch(it)
			}
		}

		w.b.q.giveBack(it)
	}
}

func (w *worker) probe(it *Item) {
	shape, err := w.rd.ProbeShape(it.Name)
	if err != nil {
		slog.Debug("probe failed", "worker", w.id, "name", it.Name, "error", err)
		it.setError(CodeRead, err)
		return
	}
	it.Shape = shape
}

func (w *worker) fetch(it *Item) {
	shape, plan := it.Shape, it.Plan
	srcC := shape.Channels

	full := w.sc.get(0, shape.Pixels())
	if err := w.rd.DecodePixels(it.Name, full, shape); err != nil {
		slog.Debug("decode failed", "worker", w.id, "name", it.Name, "error", err)
		it.setError(CodeRead, err)
		return
	}

	mid := w.sc.get(1, plan.OutH*shape.Width*srcC)
	imageproc.ResizeVertical(mid, full, plan.OutH, shape.Height, shape.Width, srcC, plan.CropH, plan.CropY)
	imageproc.ResizeHorizontal(it.out, mid, plan.OutW, shape.Width, plan.OutH, srcC, plan.CropW, plan.CropX, plan.Flip)

	imageproc.Augment(it.out, plan.OutH, plan.OutW, plan.OutC, srcC,
		w.b.opts.SubtractAverage, plan.Brightness, plan.Contrast, plan.Saturation)

	if it.dev != nil {
		if err := w.b.stream.CopyAsync(it.dev, it.out); err != nil {
			it.setError(CodeTransfer, err)
		}
	}
}
