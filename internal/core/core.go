// Package core defines the shared data model passed between extraction,
// summarization, providers, and storage.
package core

// ContentType classifies what kind of page the text was extracted from.
// The type drives prompt policy: discussion types get comment handling,
// code-hosting content gets a file-map convention instead of quotes.
type ContentType string

const (
	ContentArticle ContentType = "article"
	ContentYouTube ContentType = "youtube"
	ContentReddit  ContentType = "reddit"
	ContentTwitter ContentType = "twitter"
	ContentGitHub  ContentType = "github"
	ContentGeneric ContentType = "generic"
)

// IsDiscussion reports whether the content is a threaded discussion
// (comments are the primary signal, not an addendum).
func (t ContentType) IsDiscussion() bool {
	return t == ContentReddit || t == ContentTwitter
}

// ImageTier separates images embedded in the main body from surrounding
// page imagery.
type ImageTier string

const (
	ImageTierInline     ImageTier = "inline"
	ImageTierContextual ImageTier = "contextual"
)

// ExtractedImage is one image discovered during extraction.
type ExtractedImage struct {
	URL     string    `json:"url"`               // Absolute image URL
	Alt     string    `json:"alt"`               // Alt text, may be empty
	Caption string    `json:"caption,omitempty"` // Figure caption if present
	Tier    ImageTier `json:"tier"`              // inline or contextual
	Width   int       `json:"width,omitempty"`   // Pixel width when known
	Height  int       `json:"height,omitempty"`  // Pixel height when known
}

// ExtractedComment is one reader comment attached to the content.
type ExtractedComment struct {
	Author string `json:"author,omitempty"` // Comment author, may be empty
	Text   string `json:"text"`             // Comment body
	Likes  int    `json:"likes,omitempty"`  // Upvotes/likes when available
}

// ExtractedContent is the read-only input produced by an extractor.
// The summarization pipeline never mutates it.
type ExtractedContent struct {
	Type        ContentType `json:"type"`                  // Content classification
	URL         string      `json:"url"`                   // Source URL
	Title       string      `json:"title"`                 // Page/video title
	Author      string      `json:"author,omitempty"`      // Author when known
	PublishDate string      `json:"publishDate,omitempty"` // Publish date string when known
	Language    string      `json:"language,omitempty"`    // BCP-47-ish language code of the source
	Content     string      `json:"content"`               // Main text body (markdown)
	WordCount   int         `json:"wordCount"`             // Word count of Content

	// Video-specific
	ChannelName string `json:"channelName,omitempty"` // Channel for video content
	Duration    string `json:"duration,omitempty"`    // Human-readable duration
	ViewCount   string `json:"viewCount,omitempty"`   // View count as displayed

	// Discussion-specific
	Subreddit string `json:"subreddit,omitempty"` // Subreddit for reddit content

	Comments []ExtractedComment `json:"comments,omitempty"` // Reader comments, best first

	Images        []ExtractedImage `json:"images,omitempty"`        // Discovered images by tier
	ThumbnailURLs []string         `json:"thumbnailUrls,omitempty"` // Video/post thumbnails
}

// FetchedImage is an image downloaded and encoded for model input.
type FetchedImage struct {
	URL      string `json:"url"`      // Where the image came from
	Base64   string `json:"base64"`   // Standard base64 of the raw bytes
	MIMEType string `json:"mimeType"` // e.g. image/png
}

// Chat roles understood by every provider adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message in a chat-completion request. Messages are
// built fresh per call and never mutated after being sent.
type ChatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Images    []FetchedImage `json:"images,omitempty"`    // Attached to user messages only
	CacheHint bool           `json:"cacheHint,omitempty"` // Mark for provider-side prompt caching
}

// ProviderConfig identifies and parameterizes one LLM backend. Treated
// as immutable for the duration of a summarization call.
type ProviderConfig struct {
	ProviderID    string `json:"providerId" mapstructure:"provider_id"`       // e.g. "openai", "anthropic"
	APIKey        string `json:"apiKey" mapstructure:"api_key"`               // Credential; empty allowed for self-hosted
	Model         string `json:"model" mapstructure:"model"`                  // Model identifier
	Endpoint      string `json:"endpoint,omitempty" mapstructure:"endpoint"`  // Custom base URL; empty uses the default
	ContextWindow int    `json:"contextWindow" mapstructure:"context_window"` // Declared context size in tokens
}

// ModelInfo is one entry from a provider's model listing.
type ModelInfo struct {
	ID      string `json:"id"`                // Model identifier usable in ProviderConfig.Model
	Name    string `json:"name,omitempty"`    // Display name when the API provides one
	Created int64  `json:"created,omitempty"` // Unix creation time when available
}

// ProsAndCons is the optional balanced-view pair in a summary.
type ProsAndCons struct {
	Pros []string `json:"pros"`
	Cons []string `json:"cons"`
}

// SummaryDocument is the structured output of one summarization run.
// Every list field is non-nil after EnsureDefaults so consumers can
// range without guards.
type SummaryDocument struct {
	TLDR               string            `json:"tldr"`                         // Short synopsis
	KeyTakeaways       []string          `json:"keyTakeaways"`                 // Ordered, labeled takeaways
	Summary            string            `json:"summary"`                      // Long-form summary body (markdown)
	NotableQuotes      []string          `json:"notableQuotes,omitempty"`      // Direct quotes from the source
	Conclusion         string            `json:"conclusion,omitempty"`         // Closing synthesis
	ProsAndCons        *ProsAndCons      `json:"prosAndCons,omitempty"`        // Balanced view when requested
	FactCheck          string            `json:"factCheck,omitempty"`          // Fact-check narrative
	CommentsHighlights []string          `json:"commentsHighlights,omitempty"` // Standout reader comments
	ExtraSections      map[string]string `json:"extraSections,omitempty"`      // Title -> markdown body
	RelatedTopics      []string          `json:"relatedTopics"`                // Topics for further reading
	Tags               []string          `json:"tags"`                         // Short classification tags
	SourceLanguage     string            `json:"sourceLanguage,omitempty"`     // Detected language of the source
	SummaryLanguage    string            `json:"summaryLanguage,omitempty"`    // Language the summary was written in
	TranslatedTitle    string            `json:"translatedTitle,omitempty"`    // Title translated to the summary language
	InferredTitle      string            `json:"inferredTitle,omitempty"`      // Model-inferred title when the original was missing
	InferredAuthor     string            `json:"inferredAuthor,omitempty"`     // Model-inferred author
	InferredDate       string            `json:"inferredPublishDate,omitempty"` // Model-inferred publish date
	Provider           string            `json:"provider,omitempty"`           // Provider attribution
	Model              string            `json:"model,omitempty"`              // Model attribution
}

// EnsureDefaults replaces nil slices and maps with empty ones.
func (d *SummaryDocument) EnsureDefaults() {
	if d.KeyTakeaways == nil {
		d.KeyTakeaways = []string{}
	}
	if d.NotableQuotes == nil {
		d.NotableQuotes = []string{}
	}
	if d.CommentsHighlights == nil {
		d.CommentsHighlights = []string{}
	}
	if d.RelatedTopics == nil {
		d.RelatedTopics = []string{}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if d.ExtraSections == nil {
		d.ExtraSections = map[string]string{}
	}
	if d.ProsAndCons != nil {
		if d.ProsAndCons.Pros == nil {
			d.ProsAndCons.Pros = []string{}
		}
		if d.ProsAndCons.Cons == nil {
			d.ProsAndCons.Cons = []string{}
		}
	}
}
