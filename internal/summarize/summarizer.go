// Package summarize implements the summarization pipeline: chunking
// oversized text to fit a context window, rolling intermediate context
// across sequential chunks, streaming collection, structured-output
// parsing with repair, a bounded image round trip, and retry
// classification.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"condense/internal/core"
	"condense/internal/llm"
	"condense/internal/logger"
)

const (
	// Summary calls get extra output headroom beyond the chat default.
	summaryMaxTokens = 8192

	// Image round-trip bounds: at most 3 URLs honored per request, at
	// most 5 images total across a summarization, one round trip ever.
	maxRequestedImages = 3
	maxTotalImages     = 5
)

// ImageFetcher downloads and encodes images for model input. Fetch
// failures for individual URLs are skipped, not fatal.
type ImageFetcher interface {
	FetchImages(ctx context.Context, urls []string, limit int) []core.FetchedImage
}

// Observer receives progress and debug callbacks during a run. All
// fields are optional.
type Observer struct {
	OnSystemPrompt   func(prompt string)
	OnConversation   func(messages []core.ChatMessage)
	OnRawResponse    func(response string)
	OnRollingSummary func(summary string)
	OnStreamChunk    func(accumulated string)
	OnChunkProgress  func(chunkIndex, totalChunks int)
	OnRequestBody    func(body string)
	OnResponseBody   func(body string)
}

// Options configures one summarization run.
type Options struct {
	Detail           DetailLevel
	Language         string   // "auto" or a language code
	LanguageExcept   []string // with a fixed Language: source languages to leave untranslated
	ContextWindow    int      // tokens; falls back to the provider default when 0
	MaxRetries       int
	RetryDelay       time.Duration
	UserInstructions string

	Images        []core.FetchedImage // pre-fetched images to attach to the first chunk
	ImageURLList  []ImageRef          // URL+alt listing matching Images, for placeholders
	ImageAnalysis bool                // allow the model to request more images
	Fetcher       ImageFetcher        // required for the image round trip

	Observer Observer
}

// DefaultOptions returns the standard run configuration.
func DefaultOptions() Options {
	return Options{
		Detail:        DetailStandard,
		Language:      "auto",
		ContextWindow: 128000,
		MaxRetries:    2,
		RetryDelay:    time.Second,
	}
}

// Summarize turns extracted content into a structured summary document.
// Transient failures are retried with linear backoff; TextResponseError,
// NoContentError, ImageRequestError, and cancellation propagate
// immediately. The image round trip runs at most once.
func Summarize(ctx context.Context, provider llm.Provider, content *core.ExtractedContent, opts Options) (*core.SummaryDocument, error) {
	if content == nil || content.Content == "" {
		return nil, fmt.Errorf("no content to summarize")
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = DefaultOptions().ContextWindow
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}

	r := &run{
		provider: provider,
		content:  content,
		opts:     opts,
		images:   opts.Images,
	}
	r.systemPrompt = BuildSystemPrompt(SystemPromptParams{
		Detail:           opts.Detail,
		Language:         opts.Language,
		LanguageExcept:   opts.LanguageExcept,
		HasImages:        len(opts.Images) > 0,
		WordCount:        content.WordCount,
		ContentType:      content.Type,
		SchemaEnforced:   provider.SupportsSchema(),
		UserInstructions: opts.UserInstructions,
	})
	if opts.Observer.OnSystemPrompt != nil {
		opts.Observer.OnSystemPrompt(r.systemPrompt)
	}

	r.thumbnails = map[string]bool{}
	for _, u := range content.ThumbnailURLs {
		r.thumbnails[u] = true
	}
	r.placeholders = BuildPlaceholders(content, opts.ImageURLList)

	chunks := SplitIntoChunks(content.Content, opts.ContextWindow)
	logger.Debug("summarization run", "chunks", len(chunks), "wordCount", content.WordCount, "provider", provider.ID())

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var doc *core.SummaryDocument
		var err error
		if len(chunks) == 1 {
			doc, err = r.singleShot(ctx, true)
		} else {
			doc, err = r.rolling(ctx, chunks)
		}
		if err == nil {
			return doc, nil
		}

		var imgReq *ImageRequestError
		if errors.As(err, &imgReq) {
			doc, err = r.imageRoundTrip(ctx, imgReq.RequestedImages)
			if err == nil {
				return doc, nil
			}
		}

		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt < opts.MaxRetries {
			logger.Warn("summarization attempt failed", "attempt", attempt+1, "error", err.Error())
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.RetryDelay * time.Duration(attempt+1)):
			}
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("summarization failed")
	}
	return nil, lastErr
}

// isRetryable classifies a pipeline failure. The typed signals and
// cancellation are terminal; everything else (network, backend 5xx,
// unrepairable output that still parsed as prose is a TextResponseError
// and thus terminal) gets another attempt.
func isRetryable(err error) bool {
	var textErr *TextResponseError
	var noContent *NoContentError
	var imgReq *ImageRequestError
	if errors.As(err, &textErr) || errors.As(err, &noContent) || errors.As(err, &imgReq) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// run carries the per-invocation state shared by the single-shot and
// rolling paths.
type run struct {
	provider     llm.Provider
	content      *core.ExtractedContent
	opts         Options
	systemPrompt string
	thumbnails   map[string]bool
	placeholders []Placeholder

	images        []core.FetchedImage
	imageTripDone bool
}

// chatOptions builds the provider options for a structured (final) or
// free-form (intermediate) call.
func (r *run) chatOptions(structured bool) llm.ChatOptions {
	opts := llm.ChatOptions{
		MaxTokens:      summaryMaxTokens,
		OnRequestBody:  r.opts.Observer.OnRequestBody,
		OnResponseBody: r.opts.Observer.OnResponseBody,
	}
	if !structured {
		return opts
	}
	if r.provider.SupportsSchema() {
		opts.Schema = llm.SummaryResponseSchema()
	} else {
		opts.JSONMode = true
	}
	return opts
}

func (r *run) send(ctx context.Context, messages []core.ChatMessage, structured bool) (string, error) {
	if r.opts.Observer.OnConversation != nil {
		r.opts.Observer.OnConversation(messages)
	}
	response, err := collectStream(ctx, r.provider, messages, r.chatOptions(structured), r.opts.Observer.OnStreamChunk)
	if err != nil {
		return "", err
	}
	if r.opts.Observer.OnRawResponse != nil {
		r.opts.Observer.OnRawResponse(response)
	}
	return response, nil
}

// singleShot runs the whole content through one structured call.
// parseImageRequests is disabled on the image-retry pass so a second
// request is ignored.
func (r *run) singleShot(ctx context.Context, parseImageRequests bool) (*core.SummaryDocument, error) {
	userPrompt := BuildContentPrompt(r.content)
	if len(r.images) > 0 && len(r.opts.ImageURLList) > 0 {
		userPrompt += FormatImageURLListing(r.opts.ImageURLList, r.thumbnails)
	}

	messages := []core.ChatMessage{
		{Role: core.RoleSystem, Content: r.systemPrompt, CacheHint: true},
		{Role: core.RoleUser, Content: userPrompt, Images: r.images},
	}

	response, err := r.send(ctx, messages, true)
	if err != nil {
		return nil, err
	}
	return r.finish(response, parseImageRequests && len(r.images) > 0)
}

// rolling walks the chunk sequence in order, carrying each intermediate
// response forward as context. Only the final chunk's response is
// parsed; images attach to the first chunk only and comments inject
// into the last chunk only.
func (r *run) rolling(ctx context.Context, chunks []string) (*core.SummaryDocument, error) {
	if len(chunks) == 0 {
		panic("summarize: rolling called with no chunks")
	}

	rollingSummary := ""
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.opts.Observer.OnChunkProgress != nil {
			r.opts.Observer.OnChunkProgress(i, len(chunks))
		}
		isFirst := i == 0
		isLast := i == len(chunks)-1

		var userPrompt string
		if isFirst {
			chunkContent := *r.content
			chunkContent.Content = chunk
			chunkContent.Comments = nil
			userPrompt = BuildContentPrompt(&chunkContent)
			if len(r.images) > 0 && len(r.opts.ImageURLList) > 0 {
				userPrompt += FormatImageURLListing(r.opts.ImageURLList, r.thumbnails)
			}
		} else {
			userPrompt = RollingContextPrompt(rollingSummary) + "\n\n"
			if isLast {
				userPrompt += FinalChunkPrompt() + "\n\n"
			}
			userPrompt += fmt.Sprintf("**Content (part %d of %d):**\n\n%s", i+1, len(chunks), chunk)
			if isLast && !r.content.Type.IsDiscussion() && len(r.content.Comments) > 0 {
				var b strings.Builder
				b.WriteString(userPrompt)
				b.WriteString("\n\n**User Comments:**\n\n")
				writeComments(&b, r.content.Comments)
				userPrompt = b.String()
			}
		}

		var images []core.FetchedImage
		if isFirst {
			images = r.images
		}
		messages := []core.ChatMessage{
			{Role: core.RoleSystem, Content: r.systemPrompt, CacheHint: true},
			{Role: core.RoleUser, Content: userPrompt, Images: images},
		}

		response, err := r.send(ctx, messages, isLast)
		if err != nil {
			return nil, err
		}

		if isLast {
			return r.finish(response, len(r.images) > 0)
		}
		rollingSummary = response
		if r.opts.Observer.OnRollingSummary != nil {
			r.opts.Observer.OnRollingSummary(rollingSummary)
		}
	}

	panic("summarize: unreachable")
}

// finish parses the final response and substitutes placeholders.
func (r *run) finish(response string, imageAnalysisEnabled bool) (*core.SummaryDocument, error) {
	doc, err := ParseSummaryResponse(response, imageAnalysisEnabled)
	if err != nil {
		return nil, err
	}
	ReplacePlaceholders(doc, r.placeholders)
	doc.Provider = r.provider.ID()
	return doc, nil
}

// imageRoundTrip fetches the model-requested images and re-runs the
// single-shot path exactly once with the enlarged image set.
func (r *run) imageRoundTrip(ctx context.Context, requested []string) (*core.SummaryDocument, error) {
	if r.imageTripDone || !r.opts.ImageAnalysis || r.opts.Fetcher == nil {
		return nil, &ImageRequestError{RequestedImages: requested}
	}
	r.imageTripDone = true

	if len(requested) > maxRequestedImages {
		requested = requested[:maxRequestedImages]
	}
	budget := maxTotalImages - len(r.images)
	if budget <= 0 {
		return r.singleShot(ctx, false)
	}

	fetched := r.opts.Fetcher.FetchImages(ctx, requested, budget)
	logger.Debug("image round trip", "requested", len(requested), "fetched", len(fetched))
	for _, img := range fetched {
		r.images = append(r.images, img)
		r.opts.ImageURLList = append(r.opts.ImageURLList, ImageRef{URL: img.URL})
	}
	r.placeholders = BuildPlaceholders(r.content, r.opts.ImageURLList)

	// Second pass parses with request detection disabled, so another
	// requestedImages value cannot loop.
	return r.singleShot(ctx, false)
}
