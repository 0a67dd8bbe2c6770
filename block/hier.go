package block

import (
	"context"
	"sync"
)

// Lifecycle is implemented by Block and Hier.
type Lifecycle interface {
	Start()
	Stop()
	TempStop()
	TempStart()
}

// Hier controls a group of blocks as a single unit. Blocks are started in
// registration order and stopped in reverse order.
type Hier struct {
	mu            sync.Mutex
	blocks        []Lifecycle
	running       bool
	tempStopDepth int
}

// Register adds blocks to the group. Blocks registered while the group is
// running are started immediately.
func (h *Hier) Register(blocks ...Lifecycle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocks = append(h.blocks, blocks...)
	for _, b := range blocks {
		if h.tempStopDepth > 0 {
			b.TempStop()
		}
		if h.running {
			b.Start()
		}
	}
}

// Unregister removes the block from the group. The block is not stopped.
func (h *Hier) Unregister(block Lifecycle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := h.blocks[:0]
	for _, b := range h.blocks {
		if b != block {
			result = append(result, b)
			continue
		}
		if h.tempStopDepth > 0 {
			b.TempStart()
		}
	}
	h.blocks = result
}

// Start starts all blocks.
func (h *Hier) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	for _, b := range h.blocks {
		b.Start()
	}
}

// Stop stops all blocks.
func (h *Hier) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	for i := len(h.blocks) - 1; i >= 0; i-- {
		h.blocks[i].Stop()
	}
	h.running = false
}

// TempStop pauses all blocks. Calls nest.
func (h *Hier) TempStop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tempStopDepth++
	if h.tempStopDepth > 1 {
		return
	}
	for i := len(h.blocks) - 1; i >= 0; i-- {
		h.blocks[i].TempStop()
	}
}

// TempStart resumes blocks paused by TempStop.
func (h *Hier) TempStart() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tempStopDepth == 0 {
		return
	}
	h.tempStopDepth--
	if h.tempStopDepth > 0 {
		return
	}
	for _, b := range h.blocks {
		b.TempStart()
	}
}

// Running returns true if the group was started and not stopped.
func (h *Hier) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Run starts all blocks and stops them when the context is done. It
// returns the context error.
func (h *Hier) Run(ctx context.Context) error {
	h.Start()
	<-ctx.Done()
	h.Stop()
	return ctx.Err()
}
