package summarize

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"condense/internal/core"
)

// TaskRegistry maps an invocation key (for example a tab identifier) to
// its in-flight summarization. At most one invocation is active per
// key: beginning a new one cancels any prior in-flight invocation for
// the same key. Each key also carries a single fetched-image slot so a
// later chat-refinement step can reuse images without refetching; the
// slot is overwritten when a new summarization begins and cleared on
// cancellation.
type TaskRegistry struct {
	mu    sync.Mutex
	tasks map[string]*task
}

type task struct {
	invocationID string
	cancel       context.CancelFunc // nil once the invocation finished
	images       []core.FetchedImage
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: map[string]*task{}}
}

// Begin registers a new invocation for key, cancelling any prior
// in-flight one and resetting the image slot. The returned context is
// cancelled if another invocation later begins for the same key. The
// invocation id must be passed back to Finish.
func (r *TaskRegistry) Begin(ctx context.Context, key string) (context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.tasks[key]; ok && prior.cancel != nil {
		prior.cancel()
	}

	runCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	r.tasks[key] = &task{invocationID: id, cancel: cancel}
	return runCtx, id
}

// Finish marks the invocation done, keeping the image slot available
// for chat refinement. Only applies when invocationID still matches: a
// superseded invocation finishing late must not touch its replacement.
func (r *TaskRegistry) Finish(key, invocationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.tasks[key]; ok && current.invocationID == invocationID && current.cancel != nil {
		current.cancel()
		current.cancel = nil
	}
}

// Cancel aborts the in-flight invocation for key, if any, and clears
// its state including the image slot.
func (r *TaskRegistry) Cancel(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.tasks[key]; ok {
		if current.cancel != nil {
			current.cancel()
		}
		delete(r.tasks, key)
	}
}

// Active reports whether an invocation is currently in flight for key.
func (r *TaskRegistry) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.tasks[key]
	return ok && current.cancel != nil
}

// StoreImages overwrites the image slot for key. No-op when the key was
// never registered.
func (r *TaskRegistry) StoreImages(key string, images []core.FetchedImage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.tasks[key]; ok {
		current.images = images
	}
}

// Images returns the stored image slot for key, or nil.
func (r *TaskRegistry) Images(key string) []core.FetchedImage {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.tasks[key]; ok {
		return current.images
	}
	return nil
}
