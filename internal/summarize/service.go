package summarize

import (
	"context"

	"condense/internal/core"
	"condense/internal/llm"
)

// Service runs summarizations under the at-most-one-active-per-key
// policy. It is the surface for hosts juggling multiple concurrent
// requests (one key per tab or session); single-invocation callers
// such as the CLI call the package-level Summarize directly.
type Service struct {
	registry *TaskRegistry
}

func NewService() *Service {
	return &Service{registry: NewTaskRegistry()}
}

func (s *Service) Registry() *TaskRegistry { return s.registry }

// Summarize runs one summarization under key. Starting another run for
// the same key cancels this one; the superseded run returns
// context.Canceled and its result is discarded.
func (s *Service) Summarize(ctx context.Context, key string, provider llm.Provider, content *core.ExtractedContent, opts Options) (*core.SummaryDocument, error) {
	runCtx, id := s.registry.Begin(ctx, key)
	defer s.registry.Finish(key, id)

	// A superseded run observes its own context cancelled while the
	// caller's context is still live; the error is context.Canceled
	// either way.
	doc, err := Summarize(runCtx, provider, content, opts)
	if err != nil {
		return nil, err
	}

	// The run may finish without another suspension point after the
	// superseding Begin fires. Its document is discarded regardless.
	if runCtx.Err() != nil {
		return nil, context.Canceled
	}

	if len(opts.Images) > 0 {
		s.registry.StoreImages(key, opts.Images)
	}
	return doc, nil
}

// Cancel aborts the in-flight summarization for key, if any.
func (s *Service) Cancel(key string) {
	s.registry.Cancel(key)
}
