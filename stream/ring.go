package stream

import (
	"sync"
)

// RingBuffer from https://medium.com/@nathanbcrocker/a-practical-guide-to-implementing-a-generic-ring-buffer-in-go-866d27ec1a05.
// It keeps the most recent size elements.
type RingBuffer[T any] struct {
	buffer []T
	size   int
	mu     sync.Mutex
	write  int
	count  int
}

func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size < 1 {
		size = 1
	}
	return &RingBuffer[T]{
		buffer: make([]T, size),
		size:   size,
	}
}

// Add inserts a new element into the buffer, overwriting the oldest if full.
func (rb *RingBuffer[T]) Add(value T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buffer[rb.write] = value
	rb.write = (rb.write + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}
}

// Get returns the contents of the buffer in FIFO order.
func (rb *RingBuffer[T]) Get() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	result := make([]T, 0, rb.count)
	for i := 0; i < rb.count; i++ {
		result = append(result, rb.buffer[(rb.write+rb.size-rb.count+i)%rb.size])
	}
	return result
}

func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

func (rb *RingBuffer[T]) Full() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count == rb.size
}

// Last returns the newest element, and false if the buffer is empty.
func (rb *RingBuffer[T]) Last() (T, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	var zero T
	if rb.count == 0 {
		return zero, false
	}
	return rb.buffer[(rb.write+rb.size-1)%rb.size], true
}

// All reports whether fn holds for every buffered element.
// An empty buffer returns false.
func (rb *RingBuffer[T]) All(fn func(T) bool) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.count == 0 {
		return false
	}
	for i := 0; i < rb.count; i++ {
		if !fn(rb.buffer[(rb.write+rb.size-rb.count+i)%rb.size]) {
			return false
		}
	}
	return true
}

func (rb *RingBuffer[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	var zero T
	for i := range rb.buffer {
		rb.buffer[i] = zero
	}
	rb.write = 0
	rb.count = 0
}
