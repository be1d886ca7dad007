package audio

import (
	"fmt"

	"github.com/eapache/queue"
)

// WindowBuffer is a FIFO of sample chunks. Chunks are kept as pushed and only
// flattened on extraction. It is not safe for concurrent use.
type WindowBuffer struct {
	chunks *queue.Queue
	// head is the number of samples already consumed from the first chunk.
	head  int
	total int
}

func NewWindowBuffer() *WindowBuffer {
	return &WindowBuffer{chunks: queue.New()}
}

// Push appends chunk to the tail. The slice is retained, not copied.
func (b *WindowBuffer) Push(chunk []float32) {
	if len(chunk) == 0 {
		return
	}
	b.chunks.Add(chunk)
	b.total += len(chunk)
}

// Len returns the number of buffered samples not yet extracted.
func (b *WindowBuffer) Len() int {
	return b.total
}

// Chunks returns the number of queued chunks.
func (b *WindowBuffer) Chunks() int {
	return b.chunks.Length()
}

// Extract removes exactly n samples from the head. A chunk that only partially
// fits stays at the head with its remainder. Callers must check Len first;
// asking for more than is buffered panics.
func (b *WindowBuffer) Extract(n int) []float32 {
	if n < 0 || n > b.total {
		panic(fmt.Sprintf("audio: extract %d samples from buffer holding %d", n, b.total))
	}
	out := make([]float32, 0, n)
	for len(out) < n {
		chunk := b.chunks.Peek().([]float32)
		rest := chunk[b.head:]
		need := n - len(out)
		if len(rest) <= need {
			out = append(out, rest...)
			b.chunks.Remove()
			b.head = 0
			continue
		}
		out = append(out, rest[:need]...)
		b.head += need
	}
	b.total -= n
	return out
}

// Reset drops every buffered sample.
func (b *WindowBuffer) Reset() {
	b.chunks = queue.New()
	b.head = 0
	b.total = 0
}
