package summarize

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"condense/internal/core"
	"condense/internal/llm"
)

func TestRegistryBeginCancelsPrior(t *testing.T) {
	r := NewTaskRegistry()

	first, firstID := r.Begin(context.Background(), "tab-1")
	second, _ := r.Begin(context.Background(), "tab-1")

	select {
	case <-first.Done():
	default:
		t.Error("starting a second invocation should cancel the first")
	}
	if second.Err() != nil {
		t.Error("the second invocation must stay live")
	}

	// The superseded invocation finishing late must not evict the
	// replacement.
	r.Finish("tab-1", firstID)
	if !r.Active("tab-1") {
		t.Error("stale Finish evicted the active invocation")
	}
}

func TestRegistryKeysAreIndependent(t *testing.T) {
	r := NewTaskRegistry()
	first, _ := r.Begin(context.Background(), "tab-1")
	_, _ = r.Begin(context.Background(), "tab-2")

	if first.Err() != nil {
		t.Error("an invocation for a different key must not cancel tab-1")
	}
}

func TestRegistryFinishEndsInvocation(t *testing.T) {
	r := NewTaskRegistry()
	ctx, id := r.Begin(context.Background(), "tab-1")
	r.Finish("tab-1", id)

	if r.Active("tab-1") {
		t.Error("finished invocation should no longer be active")
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Error("finish should release the invocation context")
	}
}

func TestRegistryImageSlot(t *testing.T) {
	r := NewTaskRegistry()
	_, id := r.Begin(context.Background(), "tab-1")

	images := []core.FetchedImage{{URL: "https://a.png", Base64: "eA==", MIMEType: "image/png"}}
	r.StoreImages("tab-1", images)
	r.Finish("tab-1", id)

	// The slot survives completion for chat refinement.
	if got := r.Images("tab-1"); len(got) != 1 || got[0].URL != "https://a.png" {
		t.Errorf("expected stored images after finish, got %v", got)
	}

	// A new summarization overwrites the slot.
	_, _ = r.Begin(context.Background(), "tab-1")
	if got := r.Images("tab-1"); len(got) != 0 {
		t.Errorf("expected an empty slot after a new Begin, got %v", got)
	}
}

func TestRegistryCancelClearsState(t *testing.T) {
	r := NewTaskRegistry()
	ctx, _ := r.Begin(context.Background(), "tab-1")
	r.StoreImages("tab-1", []core.FetchedImage{{URL: "https://a.png"}})

	r.Cancel("tab-1")
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Error("cancel should abort the invocation context")
	}
	if r.Active("tab-1") {
		t.Error("cancelled key should not be active")
	}
	if got := r.Images("tab-1"); got != nil {
		t.Errorf("cancel should clear the image slot, got %v", got)
	}
}

func TestServiceSupersededRunDiscarded(t *testing.T) {
	service := NewService()
	content := testContent(200)

	// The first provider blocks until its context is cancelled, then
	// surfaces the cancellation.
	firstStarted := make(chan struct{})
	firstProvider := &blockingProvider{started: firstStarted}

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = service.Summarize(context.Background(), "tab-1", firstProvider, content, testOptions())
	}()

	<-firstStarted
	secondProvider := &mockProvider{responses: []string{envelopeResponse}}
	doc, err := service.Summarize(context.Background(), "tab-1", secondProvider, content, testOptions())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if doc.TLDR == "" {
		t.Error("second run should produce the document")
	}

	wg.Wait()
	if !errors.Is(firstErr, context.Canceled) {
		t.Errorf("superseded run should observe cancellation, got %v", firstErr)
	}
}

// blockingProvider parks the stream until the context is cancelled.
type blockingProvider struct {
	started chan struct{}
	once    sync.Once
}

func (p *blockingProvider) ID() string           { return "blocking" }
func (p *blockingProvider) Name() string         { return "Blocking" }
func (p *blockingProvider) SupportsSchema() bool { return false }

func (p *blockingProvider) SendChat(ctx context.Context, _ []core.ChatMessage, _ llm.ChatOptions) (string, error) {
	return "", p.wait(ctx)
}

func (p *blockingProvider) StreamChat(ctx context.Context, _ []core.ChatMessage, _ llm.ChatOptions, _ llm.StreamFunc) error {
	return p.wait(ctx)
}

func (p *blockingProvider) wait(ctx context.Context) error {
	p.once.Do(func() { close(p.started) })
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return errors.New("blocking provider timed out")
	}
}

func TestServiceLateSupersessionDiscardsDocument(t *testing.T) {
	service := NewService()
	content := testContent(200)

	// The replacement begins after the last stream fragment, so the
	// pipeline itself never observes cancellation.
	provider := &handoffProvider{response: envelopeResponse}
	provider.after = func() {
		service.Registry().Begin(context.Background(), "tab-1")
	}

	doc, err := service.Summarize(context.Background(), "tab-1", provider, content, testOptions())
	if doc != nil {
		t.Errorf("superseded run must not surface its document, got tldr %q", doc.TLDR)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("superseded run should report cancellation, got %v", err)
	}
}

// handoffProvider completes normally but runs a hook after its final
// fragment, before the pipeline returns.
type handoffProvider struct {
	response string
	after    func()
}

func (p *handoffProvider) ID() string           { return "handoff" }
func (p *handoffProvider) Name() string         { return "Handoff" }
func (p *handoffProvider) SupportsSchema() bool { return false }

func (p *handoffProvider) SendChat(_ context.Context, _ []core.ChatMessage, _ llm.ChatOptions) (string, error) {
	defer p.after()
	return p.response, nil
}

func (p *handoffProvider) StreamChat(_ context.Context, _ []core.ChatMessage, _ llm.ChatOptions, yield llm.StreamFunc) error {
	if err := yield(p.response); err != nil {
		return err
	}
	p.after()
	return nil
}
