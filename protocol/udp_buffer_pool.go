package protocol

import "sync"

// ReadBufferSize is the size for UDP read buffers
const ReadBufferSize = 65535

// readPool holds buffers for the link and N3 socket readers.
var readPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ReadBufferSize)
		return &buf
	},
}

// GetReadBuffer returns a buffer for UDP read operations.
// The returned buffer has a length of exactly ReadBufferSize (65535 bytes).
// Callers must call PutReadBuffer when done to return the buffer to the pool.
func GetReadBuffer() *[]byte {
	return readPool.Get().(*[]byte)
}

// PutReadBuffer returns a read buffer to the pool.
// If buf is nil or has incorrect size, it is silently discarded.
func PutReadBuffer(buf *[]byte) {
	if buf == nil || len(*buf) != ReadBufferSize {
		return
	}
	readPool.Put(buf)
}
