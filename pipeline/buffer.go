package pipeline

import (
	"fmt"
	"sync"

	"github.com/idealinvestse/shoppi-shop-finder/models"
)

// BufferedWriter accumulates validated products and flushes them to the sink
// in batches. A flush writes only the currently buffered, unflushed set and
// then clears it; flush failures are surfaced, never swallowed.
type BufferedWriter struct {
	sink OutputWriter
	size int

	mu     sync.Mutex
	buffer []*models.Product
}

// NewBufferedWriter wraps sink with a buffer of the given size.
func NewBufferedWriter(sink OutputWriter, size int) *BufferedWriter {
	if size <= 0 {
		size = 100
	}
	return &BufferedWriter{
		sink:   sink,
		size:   size,
		buffer: make([]*models.Product, 0, size),
	}
}

// Append buffers one product, flushing synchronously once the buffer fills.
func (bw *BufferedWriter) Append(p *models.Product) error {
	if p == nil {
		return nil
	}

	bw.mu.Lock()
	defer bw.mu.Unlock()

	bw.buffer = append(bw.buffer, p)
	if len(bw.buffer) >= bw.size {
		return bw.flushLocked()
	}
	return nil
}

// Flush writes any buffered products to the sink.
func (bw *BufferedWriter) Flush() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.flushLocked()
}

func (bw *BufferedWriter) flushLocked() error {
	if len(bw.buffer) == 0 {
		return nil
	}
	if err := bw.sink.Write(bw.buffer); err != nil {
		return fmt.Errorf("flush buffer: %w", err)
	}
	bw.buffer = bw.buffer[:0]
	return nil
}

// Len returns the number of buffered, unflushed products.
func (bw *BufferedWriter) Len() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}
