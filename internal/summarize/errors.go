package summarize

// TextResponseError reports that the model answered in prose instead of
// the structured JSON shape (a refusal, a clarifying question, or output
// so broken no repair salvaged it). Not retryable; the text is surfaced
// to the user as a chat-style message.
type TextResponseError struct {
	Response string
}

func (e *TextResponseError) Error() string { return e.Response }

// NoContentError reports that the page had nothing worth summarizing
// (login page, error page, UI boilerplate). Not retryable.
type NoContentError struct {
	Reason string
}

func (e *NoContentError) Error() string { return e.Reason }

// ImageRequestError reports that the model asked for additional image
// URLs before producing a summary. Handled by the image round trip, not
// the retry loop.
type ImageRequestError struct {
	RequestedImages []string
}

func (e *ImageRequestError) Error() string { return "model requested additional images" }
