package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"condense/internal/core"
	"condense/internal/llm"
)

// mockProvider scripts one response (or error) per call and records
// every request for assertions.
type mockProvider struct {
	id             string
	supportsSchema bool
	responses      []string
	errs           []error
	calls          []mockCall
}

type mockCall struct {
	messages []core.ChatMessage
	opts     llm.ChatOptions
}

func (m *mockProvider) ID() string {
	if m.id != "" {
		return m.id
	}
	return "mock"
}

func (m *mockProvider) Name() string         { return "Mock" }
func (m *mockProvider) SupportsSchema() bool { return m.supportsSchema }

func (m *mockProvider) next(messages []core.ChatMessage, opts llm.ChatOptions) (string, error) {
	idx := len(m.calls)
	m.calls = append(m.calls, mockCall{messages: messages, opts: opts})
	if idx < len(m.errs) && m.errs[idx] != nil {
		return "", m.errs[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return "", fmt.Errorf("mock: unscripted call %d", idx)
}

func (m *mockProvider) SendChat(ctx context.Context, messages []core.ChatMessage, opts llm.ChatOptions) (string, error) {
	return m.next(messages, opts)
}

func (m *mockProvider) StreamChat(ctx context.Context, messages []core.ChatMessage, opts llm.ChatOptions, yield llm.StreamFunc) error {
	response, err := m.next(messages, opts)
	if err != nil {
		return err
	}
	// Deliver in two fragments to exercise accumulation.
	mid := len(response) / 2
	if err := yield(response[:mid]); err != nil {
		return err
	}
	return yield(response[mid:])
}

func testContent(words int) *core.ExtractedContent {
	return &core.ExtractedContent{
		Type:      core.ContentArticle,
		URL:       "https://example.com/article",
		Title:     "An Article",
		Content:   strings.Repeat("word ", words),
		WordCount: words,
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.RetryDelay = time.Millisecond
	return opts
}

func TestSummarizeSingleShot(t *testing.T) {
	provider := &mockProvider{responses: []string{envelopeResponse}}
	doc, err := Summarize(context.Background(), provider, testContent(200), testOptions())
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if len(provider.calls) != 1 {
		t.Fatalf("expected 1 provider call, got %d", len(provider.calls))
	}
	if doc.TLDR == "" || doc.Summary == "" {
		t.Error("expected populated tldr and summary")
	}
	if n := len(doc.KeyTakeaways); n < 3 || n > 5 {
		t.Errorf("expected 3-5 takeaways, got %d", n)
	}
	if doc.Provider != "mock" {
		t.Errorf("expected provider attribution, got %q", doc.Provider)
	}

	call := provider.calls[0]
	if call.messages[0].Role != core.RoleSystem || call.messages[1].Role != core.RoleUser {
		t.Error("expected system+user message pair")
	}
	if !call.opts.JSONMode {
		t.Error("non-schema provider should get JSON mode")
	}
	if call.opts.MaxTokens != summaryMaxTokens {
		t.Errorf("expected %d max tokens, got %d", summaryMaxTokens, call.opts.MaxTokens)
	}
}

func TestSummarizeSchemaProviderGetsSchema(t *testing.T) {
	provider := &mockProvider{supportsSchema: true, responses: []string{envelopeResponse}}
	if _, err := Summarize(context.Background(), provider, testContent(200), testOptions()); err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	call := provider.calls[0]
	if call.opts.Schema == nil {
		t.Error("schema-capable provider should receive the response schema")
	}
	if call.opts.JSONMode {
		t.Error("schema and JSON mode are mutually exclusive")
	}
	// The schema travels out-of-band; the prompt skips the field listing.
	if strings.Contains(call.messages[0].Content, `"inferredPublishDate": "YYYY-MM-DD or null"`) {
		t.Error("system prompt should not embed the schema for schema-capable providers")
	}
}

func TestSummarizeRollingContext(t *testing.T) {
	content := testContent(12000) // ~60000 chars, forces chunking at a small window
	opts := testOptions()
	opts.ContextWindow = 16000

	chunks := SplitIntoChunks(content.Content, opts.ContextWindow)
	if len(chunks) < 3 {
		t.Fatalf("fixture needs at least 3 chunks, got %d", len(chunks))
	}

	responses := make([]string, len(chunks))
	for i := range responses {
		responses[i] = fmt.Sprintf("intermediate summary %d", i)
	}
	responses[len(responses)-1] = envelopeResponse

	var rollingSeen []string
	opts.Observer.OnRollingSummary = func(s string) { rollingSeen = append(rollingSeen, s) }

	provider := &mockProvider{responses: responses}
	doc, err := Summarize(context.Background(), provider, content, opts)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if len(provider.calls) != len(chunks) {
		t.Fatalf("expected %d provider calls, got %d", len(chunks), len(provider.calls))
	}
	if doc.TLDR != "A short overview." {
		t.Errorf("unexpected tldr %q", doc.TLDR)
	}

	// Intermediate calls are free-form; only the last requests JSON.
	for i, call := range provider.calls {
		isLast := i == len(provider.calls)-1
		if call.opts.JSONMode != isLast {
			t.Errorf("call %d: JSONMode=%v, want %v", i, call.opts.JSONMode, isLast)
		}
	}

	// Each chunk after the first carries the previous response verbatim.
	for i := 1; i < len(provider.calls); i++ {
		wantContext := fmt.Sprintf("intermediate summary %d", i-1)
		if !strings.Contains(provider.calls[i].messages[1].Content, wantContext) {
			t.Errorf("call %d should embed the previous chunk's output", i)
		}
	}
	if len(rollingSeen) != len(chunks)-1 {
		t.Errorf("expected %d rolling summaries, got %d", len(chunks)-1, len(rollingSeen))
	}
	if !strings.Contains(provider.calls[len(chunks)-1].messages[1].Content, "FINAL portion") {
		t.Error("last chunk prompt should carry the final-chunk instruction")
	}
}

func TestSummarizeCommentsOnlyInFinalChunk(t *testing.T) {
	content := testContent(12000)
	content.Comments = []core.ExtractedComment{{Author: "alice", Text: "great post"}}
	opts := testOptions()
	opts.ContextWindow = 16000

	chunks := SplitIntoChunks(content.Content, opts.ContextWindow)
	responses := make([]string, len(chunks))
	for i := range responses {
		responses[i] = "carry"
	}
	responses[len(responses)-1] = envelopeResponse

	provider := &mockProvider{responses: responses}
	if _, err := Summarize(context.Background(), provider, content, opts); err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	for i, call := range provider.calls {
		hasComments := strings.Contains(call.messages[1].Content, "great post")
		if isLast := i == len(provider.calls)-1; hasComments != isLast {
			t.Errorf("call %d: comments present=%v, want %v", i, hasComments, isLast)
		}
	}
}

func TestSummarizeNoContentSignal(t *testing.T) {
	provider := &mockProvider{responses: []string{`{"noContent": true, "reason": "login page"}`}}
	_, err := Summarize(context.Background(), provider, testContent(200), testOptions())

	var noContent *NoContentError
	if !errors.As(err, &noContent) {
		t.Fatalf("expected NoContentError, got %v", err)
	}
	if noContent.Reason != "login page" {
		t.Errorf("expected reason to carry through, got %q", noContent.Reason)
	}
	if len(provider.calls) != 1 {
		t.Errorf("terminal signal must not retry, got %d calls", len(provider.calls))
	}
}

func TestSummarizeTextResponseNotRetried(t *testing.T) {
	provider := &mockProvider{responses: []string{"I cannot summarize this."}}
	_, err := Summarize(context.Background(), provider, testContent(200), testOptions())

	var textErr *TextResponseError
	if !errors.As(err, &textErr) {
		t.Fatalf("expected TextResponseError, got %v", err)
	}
	if len(provider.calls) != 1 {
		t.Errorf("terminal signal must not retry, got %d calls", len(provider.calls))
	}
}

func TestSummarizeRetryBound(t *testing.T) {
	transient := &llm.APIError{StatusCode: 500, Body: "backend exploded"}
	provider := &mockProvider{errs: []error{transient, transient, transient, transient}}

	opts := testOptions()
	opts.MaxRetries = 2
	_, err := Summarize(context.Background(), provider, testContent(200), opts)
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	var apiErr *llm.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("last underlying error should surface, got %v", err)
	}
	// Initial attempt plus exactly MaxRetries retries.
	if len(provider.calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(provider.calls))
	}
}

func TestSummarizeRetryThenSuccess(t *testing.T) {
	provider := &mockProvider{
		errs:      []error{&llm.APIError{StatusCode: 503, Body: "busy"}, nil},
		responses: []string{"", envelopeResponse},
	}
	doc, err := Summarize(context.Background(), provider, testContent(200), testOptions())
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if doc.TLDR == "" {
		t.Error("expected a document after the retry")
	}
	if len(provider.calls) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(provider.calls))
	}
}

func TestSummarizeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &mockProvider{responses: []string{envelopeResponse}}
	_, err := Summarize(ctx, provider, testContent(200), testOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(provider.calls) != 0 {
		t.Errorf("cancelled run should make no calls, got %d", len(provider.calls))
	}
}

type stubFetcher struct {
	fetched [][]string
}

func (f *stubFetcher) FetchImages(ctx context.Context, urls []string, limit int) []core.FetchedImage {
	if len(urls) > limit {
		urls = urls[:limit]
	}
	f.fetched = append(f.fetched, urls)
	images := make([]core.FetchedImage, 0, len(urls))
	for _, u := range urls {
		images = append(images, core.FetchedImage{URL: u, Base64: "aGk=", MIMEType: "image/png"})
	}
	return images
}

func TestSummarizeImageRoundTrip(t *testing.T) {
	imageRequest := `{"text": "", "summary": null, "requestedImages": ["https://u1.png", "https://u2.png"]}`
	provider := &mockProvider{responses: []string{imageRequest, envelopeResponse}}

	fetcher := &stubFetcher{}
	opts := testOptions()
	opts.ImageAnalysis = true
	opts.Fetcher = fetcher
	opts.Images = []core.FetchedImage{{URL: "https://orig.png", Base64: "eA==", MIMEType: "image/png"}}
	opts.ImageURLList = []ImageRef{{URL: "https://orig.png", Alt: "original"}}

	doc, err := Summarize(context.Background(), provider, testContent(200), opts)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if doc.TLDR == "" {
		t.Error("expected a document from the second pass")
	}
	if len(provider.calls) != 2 {
		t.Fatalf("expected exactly 2 provider calls, got %d", len(provider.calls))
	}
	if len(fetcher.fetched) != 1 || len(fetcher.fetched[0]) != 2 {
		t.Fatalf("expected one fetch of 2 urls, got %v", fetcher.fetched)
	}

	// Second call carries the merged image set.
	second := provider.calls[1].messages[1]
	if len(second.Images) != 3 {
		t.Errorf("expected 3 attached images on the retry, got %d", len(second.Images))
	}
}

func TestSummarizeSecondImageRequestIgnored(t *testing.T) {
	imageRequest := `{"text": "", "summary": null, "requestedImages": ["https://u1.png"]}`
	// The retry pass also asks for images; detection is disabled so the
	// missing summary surfaces as a text response instead of looping.
	provider := &mockProvider{responses: []string{imageRequest, imageRequest}}

	opts := testOptions()
	opts.ImageAnalysis = true
	opts.Fetcher = &stubFetcher{}
	opts.Images = []core.FetchedImage{{URL: "https://orig.png", Base64: "eA==", MIMEType: "image/png"}}

	_, err := Summarize(context.Background(), provider, testContent(200), opts)
	var textErr *TextResponseError
	if !errors.As(err, &textErr) {
		t.Fatalf("expected TextResponseError, got %v", err)
	}
	if len(provider.calls) != 2 {
		t.Errorf("expected exactly 2 calls, got %d", len(provider.calls))
	}
}

func TestSummarizeImageRequestWithoutFetcherPropagates(t *testing.T) {
	imageRequest := `{"text": "", "summary": null, "requestedImages": ["https://u1.png"]}`
	provider := &mockProvider{responses: []string{imageRequest}}

	opts := testOptions()
	opts.Images = []core.FetchedImage{{URL: "https://orig.png", Base64: "eA==", MIMEType: "image/png"}}

	_, err := Summarize(context.Background(), provider, testContent(200), opts)
	var imgReq *ImageRequestError
	if !errors.As(err, &imgReq) {
		t.Fatalf("expected ImageRequestError to propagate, got %v", err)
	}
	if len(provider.calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(provider.calls))
	}
}
