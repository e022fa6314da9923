package summarize

import (
	"context"
	"strings"
	"time"

	"condense/internal/core"
	"condense/internal/llm"
)

// streamThrottle bounds how often the progress callback fires so a fast
// stream does not flood observers.
const streamThrottle = 100 * time.Millisecond

// collectStream drives provider.StreamChat, accumulating fragments into
// one string. onProgress receives the accumulated text at most once per
// throttle interval, with a final flush before return. On error or
// cancellation mid-stream, whatever accumulated is still flushed once
// before the error propagates.
func collectStream(ctx context.Context, provider llm.Provider, messages []core.ChatMessage, opts llm.ChatOptions, onProgress func(accumulated string)) (string, error) {
	var accumulated strings.Builder
	var lastPush time.Time

	err := provider.StreamChat(ctx, messages, opts, func(fragment string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		accumulated.WriteString(fragment)
		if onProgress != nil && time.Since(lastPush) >= streamThrottle {
			lastPush = time.Now()
			onProgress(accumulated.String())
		}
		return nil
	})

	if onProgress != nil && accumulated.Len() > 0 {
		onProgress(accumulated.String())
	}
	if err != nil {
		return "", err
	}
	return accumulated.String(), nil
}
