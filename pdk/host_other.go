//go:build !wasip1

package pdk

import (
	"sync"

	"github.com/rushsh/rush/hostfuncs"
	"github.com/rushsh/rush/internal/abi"
)

// Shell is the client for the shell running this plugin. Outside a wasip1
// build there is no shell and every binding fails.
var Shell = NewClient(func(binding string, _ []byte) []byte {
	return hostfuncs.NewNotFoundError(binding).ToJSON()
})

// arena stands in for linear memory so plugin code can be unit tested on
// the build machine.
var arena = struct {
	sync.Mutex
	next uint32
	bufs map[uint32][]byte
}{
	next: 8,
	bufs: make(map[uint32][]byte),
}

// Input returns the bytes last written at span by Output.
func Input(span uint64) []byte {
	s := abi.Decode(span)
	arena.Lock()
	defer arena.Unlock()
	buf, ok := arena.bufs[s.Offset]
	if !ok || int(s.Length) > len(buf) {
		return nil
	}
	return append([]byte(nil), buf[:s.Length]...)
}

// Output stores data and returns a span Input resolves.
func Output(data []byte) uint64 {
	arena.Lock()
	defer arena.Unlock()
	off := arena.next
	arena.next += uint32(len(data)) + 8 //nolint:gosec // G115: test arena
	arena.bufs[off] = append([]byte(nil), data...)
	return abi.Span{Offset: off, Length: uint32(len(data))}.Encode() //nolint:gosec // G115: test arena
}
