// Package pool provides sync.Pool-backed reuse of wire buffers and
// decoded messages to reduce GC pressure under query load.
package pool

import (
	"sync"

	"github.com/dnsscience/resolvcore/internal/packet"
)

// Buffer size tiers, matching the encoder's retry ladder (spec §4.1)
// so a buffer fetched here is always large enough for one encode
// attempt at that tier.
const (
	SmallBufferSize  = 512         // single UDP datagram
	MediumBufferSize = 8192 + 2    // first TCP retry tier (2-byte length prefix)
	LargeBufferSize  = 16384 + 2   // second TCP retry tier
	HugeBufferSize   = 65536 + 2   // maximum TCP message, length-prefixed
)

// MessagePool reuses decoded/encoded packet.Message values.
var MessagePool = sync.Pool{
	New: func() interface{} {
		return new(packet.Message)
	},
}

// GetMessage fetches a reset Message from the pool.
func GetMessage() *packet.Message {
	return MessagePool.Get().(*packet.Message)
}

// PutMessage resets msg and returns it to the pool. Resetting here,
// not at Get time, keeps stale slices from leaking between queries.
func PutMessage(msg *packet.Message) {
	if msg == nil {
		return
	}
	msg.Reset()
	MessagePool.Put(msg)
}

var smallBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, SmallBufferSize)
		return &buf
	},
}

var mediumBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, MediumBufferSize)
		return &buf
	},
}

var largeBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, LargeBufferSize)
		return &buf
	},
}

var hugeBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, HugeBufferSize)
		return &buf
	},
}

// GetBuffer returns a buffer from the smallest tier that holds size
// bytes.
func GetBuffer(size int) []byte {
	switch {
	case size <= SmallBufferSize:
		return *(smallBufferPool.Get().(*[]byte))
	case size <= MediumBufferSize:
		return *(mediumBufferPool.Get().(*[]byte))
	case size <= LargeBufferSize:
		return *(largeBufferPool.Get().(*[]byte))
	default:
		return *(hugeBufferPool.Get().(*[]byte))
	}
}

// PutBuffer returns buf to the pool matching its capacity. Buffers
// whose capacity doesn't match a tier exactly (e.g. a caller-trimmed
// slice) are dropped rather than pooled under the wrong tier.
func PutBuffer(buf []byte) {
	buf = buf[:cap(buf)]
	switch cap(buf) {
	case SmallBufferSize:
		smallBufferPool.Put(&buf)
	case MediumBufferSize:
		mediumBufferPool.Put(&buf)
	case LargeBufferSize:
		largeBufferPool.Put(&buf)
	case HugeBufferSize:
		hugeBufferPool.Put(&buf)
	}
}
