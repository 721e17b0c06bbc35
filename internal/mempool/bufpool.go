// Package mempool pools the scratch buffers used while encoding label
// images, which are produced by the thousand in bulk runs.
package mempool

import (
	"bytes"
	"image/png"
	"sync"
)

const (
	classStep = 64 * 1024
	// Buffers above this capacity are dropped instead of pooled.
	maxPooled = 16 * 1024 * 1024
)

var bufferPools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to the next multiple of 64 KiB, minimum 64 KiB.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return (n + classStep - 1) / classStep * classStep
}

func poolFor(cls int) *sync.Pool {
	pAny, _ := bufferPools.LoadOrStore(cls, &sync.Pool{New: func() any {
		return bytes.NewBuffer(make([]byte, 0, cls))
	}})
	return pAny.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// GetBuffer returns an empty buffer with capacity for at least sizeHint
// bytes. Return it with PutBuffer once its contents have been copied out.
func GetBuffer(sizeHint int) *bytes.Buffer {
	buf, ok := poolFor(sizeClass(sizeHint)).Get().(*bytes.Buffer)
	if !ok {
		return bytes.NewBuffer(make([]byte, 0, sizeClass(sizeHint)))
	}
	buf.Reset()
	return buf
}

// PutBuffer returns buf to the pool. Nil and oversized buffers are ignored.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooled {
		return
	}
	// Pool by the class the capacity fully covers so Get never under-delivers.
	cls := buf.Cap() / classStep * classStep
	if cls < classStep {
		return
	}
	buf.Reset()
	poolFor(cls).Put(buf)
}

// PNGBuffers implements png.EncoderBufferPool so concurrent encoders reuse
// their compression state.
type PNGBuffers struct {
	pool sync.Pool
}

// Get returns a pooled encoder buffer, or nil to let the encoder allocate.
func (p *PNGBuffers) Get() *png.EncoderBuffer {
	b, _ := p.pool.Get().(*png.EncoderBuffer)
	return b
}

// Put hands an encoder buffer back.
func (p *PNGBuffers) Put(b *png.EncoderBuffer) {
	p.pool.Put(b)
}
