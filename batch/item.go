package batch

import (
	"github.com/pdevine/tensor"

	"github.com/pixfeed/pixfeed/device"
	"github.com/pixfeed/pixfeed/reader"
)

// State is an item's position in the two-phase lifecycle. States only
// advance while the queue mutex is held.
type State int

const (
	// StateProbe items are waiting for their shape to be read.
	StateProbe State = iota
	// StateFetch items have a plan and are waiting to be decoded.
	StateFetch
	// StateReady items have finished the current phase.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateProbe:
		return "probe"
	case StateFetch:
		return "fetch"
	default:
		return "ready"
	}
}

// Error codes recorded on items. A non-zero code makes later stages skip
// the item.
type ErrCode int

const (
	CodeOK ErrCode = iota
	CodeRead
	CodeTransfer
)

const maxErrMessage = 512

type ItemError struct {
	Code    ErrCode
	Message string
}

func (e *ItemError) Error() string {
	return e.Message
}

// Item tracks one image through one batch. state, borrowed and err mutate
// only under the queue mutex; shape, plan and the output buffers are
// touched only by the single worker that has the item borrowed, or by the
// coordinator between phases.
type Item struct {
	Name  string
	Index int

	state    State
	borrowed bool
	err      *ItemError

	// Shape is the decoded input shape, written by the probe phase.
	Shape reader.Shape

	// Plan is the transform plan, written by the coordinator before the
	// fetch phase.
	Plan Plan

	// out is where the fetch phase writes pixels: the item's own host
	// tensor in individual mode, a disjoint slab of the pack otherwise.
	out []float32

	host *tensor.Dense
	dev  *device.Buffer
}

func (it *Item) setError(code ErrCode, err error) {
	msg := err.Error()
	if len(msg) > maxErrMessage {
		msg = msg[:maxErrMessage]
	}
	it.err = &ItemError{Code: code, Message: msg}
}

func (it *Item) Err() *ItemError {
	return it.err
}
