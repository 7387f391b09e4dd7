//go:build wasip1

package pdk

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/rushsh/rush/internal/abi"
)

// MaxTotalAllocations bounds the memory pinned for the shell at any time.
const MaxTotalAllocations = 64 * 1024 * 1024

// pinned keeps buffers handed to the shell reachable until it releases them.
var pinned = struct {
	sync.Mutex
	bufs  map[uint32][]byte
	total int
}{
	bufs: make(map[uint32][]byte),
}

//go:wasmexport allocate
func allocate(size uint32) uint32 {
	if size == 0 {
		size = 1
	}

	pinned.Lock()
	defer pinned.Unlock()

	if pinned.total+int(size) > MaxTotalAllocations {
		panic(fmt.Sprintf("pdk: allocation limit exceeded (requested %d bytes, pinned %d bytes)", size, pinned.total))
	}

	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0]))) //nolint:gosec // G103: linear memory address
	pinned.bufs[ptr] = buf
	pinned.total += int(size)
	return ptr
}

//go:wasmexport deallocate
func deallocate(ptr uint32) {
	pinned.Lock()
	defer pinned.Unlock()

	buf, ok := pinned.bufs[ptr]
	if !ok {
		return
	}
	delete(pinned.bufs, ptr)
	pinned.total -= len(buf)
}

// Input copies the argument at span out of linear memory. The shell frees
// argument buffers when the hook returns, so they must not be retained.
func Input(span uint64) []byte {
	s := abi.Decode(span)
	if s.IsEmpty() {
		return nil
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(s.Offset))), s.Length) //nolint:gosec // G103: linear memory address
	return append([]byte(nil), src...)
}

// Output copies data into a buffer pinned for the shell and returns its span.
// The shell releases the buffer through deallocate once it has read it.
func Output(data []byte) uint64 {
	ptr := allocate(uint32(len(data)))                                     //nolint:gosec // G115: bounded by MaxTotalAllocations
	dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(data)) //nolint:gosec // G103: linear memory address
	copy(dst, data)
	return abi.Span{Offset: ptr, Length: uint32(len(data))}.Encode() //nolint:gosec // G115: bounded above
}

// release frees a buffer the shell placed in memory through allocate.
func release(span uint64) {
	if s := abi.Decode(span); !s.IsEmpty() {
		deallocate(s.Offset)
	}
}
