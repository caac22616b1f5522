// Package device provides the asynchronous transfer layer the pipeline
// uploads pixels through. The software backend models a single accelerator:
// buffers are device-resident byte blocks and a Stream executes submitted
// copies strictly in submission order on its own goroutine.
package device

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

type ElemType int

const (
	Float32 ElemType = iota
	Float16
	BFloat16
)

func ParseElemType(name string) (ElemType, error) {
	switch name {
	case "", "float32":
		return Float32, nil
	case "float16":
		return Float16, nil
	case "bfloat16":
		return BFloat16, nil
	}
	return Float32, fmt.Errorf("unknown element type %q", name)
}

func (t ElemType) String() string {
	switch t {
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	}
	return "float32"
}

func (t ElemType) Size() int {
	if t == Float32 {
		return 4
	}
	return 2
}

// Buffer is a device-resident block of count elements.
type Buffer struct {
	data []byte
	elem ElemType
}

func Alloc(count int, elem ElemType) *Buffer {
	return &Buffer{data: make([]byte, count*elem.Size()), elem: elem}
}

func (b *Buffer) ElemType() ElemType {
	return b.elem
}

func (b *Buffer) Count() int {
	return len(b.data) / b.elem.Size()
}

func (b *Buffer) ByteSize() int64 {
	return int64(len(b.data))
}

// Float32s decodes the buffer back to float32. Device memory is not meant
// to be read mid-flight; callers synchronize the owning stream first.
func (b *Buffer) Float32s() []float32 {
	out := make([]float32, b.Count())
	switch b.elem {
	case Float32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b.data[i*4:]))
		}
	case Float16:
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(b.data[i*2:])).Float32()
		}
	case BFloat16:
		out = bfloat16.DecodeFloat32(b.data)
	}
	return out
}

func (b *Buffer) write(src []float32) {
	switch b.elem {
	case Float32:
		for i, v := range src {
			binary.LittleEndian.PutUint32(b.data[i*4:], math.Float32bits(v))
		}
	case Float16:
		for i, v := range src {
			binary.LittleEndian.PutUint16(b.data[i*2:], float16.Fromfloat32(v).Bits())
		}
	case BFloat16:
		copy(b.data, bfloat16.EncodeFloat32(src))
	}
}

var current atomic.Int32

// Adopt makes the given device current. The software backend has a single
// device and keeps one process-wide current id, so this only records the id.
func Adopt(id int) {
	current.Store(int32(id))
}

func Current() int {
	return int(current.Load())
}
