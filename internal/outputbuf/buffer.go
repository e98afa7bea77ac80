package outputbuf

import (
	"sync"

	"github.com/xln3/forgeagent/pkg/types"
)

// Buffer is a single task's append-only chunk log. Positions start at 0 and
// are assigned strictly in append order; a chunk once returned from
// GetChunks never changes, so repeated calls with the same fromPosition
// return the same prefix plus whatever was appended since.
type Buffer struct {
	mu          sync.Mutex
	chunks      []types.OutputChunk
	subscribers []func(types.OutputChunk)
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds a chunk at the next position and returns it. Subscribers are
// notified after the chunk is appended to the slice, so a notified reader
// calling GetChunks immediately observes it.
func (b *Buffer) Append(typ types.OutputChunkType, content string, attrs *types.ChunkAttrs) int {
	b.mu.Lock()
	position := len(b.chunks)
	chunk := types.OutputChunk{Position: position, Type: typ, Content: content, Attrs: attrs}
	b.chunks = append(b.chunks, chunk)
	subs := make([]func(types.OutputChunk), len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, sub := range subs {
		sub(chunk)
	}
	return position
}

// Count returns the number of chunks appended so far.
func (b *Buffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// GetChunks returns every chunk with position >= fromPosition that existed
// at call time.
func (b *Buffer) GetChunks(fromPosition int) []types.OutputChunk {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fromPosition < 0 {
		fromPosition = 0
	}
	if fromPosition >= len(b.chunks) {
		return nil
	}
	out := make([]types.OutputChunk, len(b.chunks)-fromPosition)
	copy(out, b.chunks[fromPosition:])
	return out
}

// Subscribe registers cb to be called with every chunk appended from now
// on. It does not replay history; callers that need the full stream should
// call GetChunks(0) before subscribing.
func (b *Buffer) Subscribe(cb func(types.OutputChunk)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, cb)
}

// Clear drops all chunks and subscribers. Used when a buffer manager
// recycles a slot; not used for normal task completion (buffers survive
// until eviction so late pollers still observe the final chunks).
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.subscribers = nil
}
