package summarize

import (
	"fmt"
	"strings"
	"time"

	"condense/internal/core"
)

// DetailLevel controls target lengths and which optional fields the
// model is asked to fill.
type DetailLevel string

const (
	DetailBrief    DetailLevel = "brief"
	DetailStandard DetailLevel = "standard"
	DetailDetailed DetailLevel = "detailed"
)

// Word-count buckets tune the detail policy: a 300-word note should not
// produce a seven-takeaway summary regardless of the configured level.
const (
	shortContentWords = 500
	longContentWords  = 3000
)

const maxCommentsInPrompt = 20

// for tests
var timeNow = time.Now

var languageNames = map[string]string{
	"en": "English", "es": "Spanish", "fr": "French", "de": "German",
	"pt": "Portuguese", "ru": "Russian", "zh": "Chinese", "ja": "Japanese", "ko": "Korean",
}

func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

// ImageRef pairs an image URL with its alt text for prompt listings and
// placeholder substitution.
type ImageRef struct {
	URL string
	Alt string
}

// SystemPromptParams bundles the policy inputs for BuildSystemPrompt.
type SystemPromptParams struct {
	Detail           DetailLevel
	Language         string // "auto", or a language code
	LanguageExcept   []string
	HasImages        bool
	WordCount        int
	ContentType      core.ContentType
	SchemaEnforced   bool // schema passed out-of-band; skip the embedded description
	UserInstructions string
}

// BuildSystemPrompt assembles the summarization system prompt: language
// policy, detail policy tuned by word-count bucket, the response shape
// (embedded textually unless the provider enforces it natively),
// content-type overrides, and user instructions appended last with
// highest priority. Pure function of its inputs aside from today's date.
func BuildSystemPrompt(p SystemPromptParams) string {
	var b strings.Builder

	today := timeNow().UTC().Format("2006-01-02")
	b.WriteString(fmt.Sprintf("You are an expert content summarizer. Today's date is %s. %s\n\n", today, languageInstruction(p.Language, p.LanguageExcept)))
	b.WriteString(detailInstruction(p.Detail, p.WordCount))
	b.WriteString("\n\n")

	if p.SchemaEnforced {
		b.WriteString("Respond with a JSON object matching the response schema. Put the summary fields inside the \"summary\" object; use the \"text\" field only for conversational replies.\n")
	} else {
		b.WriteString(embeddedSchemaDescription)
	}

	b.WriteString(responseGuidelines)

	if p.ContentType == core.ContentGitHub {
		b.WriteString(githubOverrides)
	}

	if p.HasImages {
		b.WriteString(imageAnalysisInstructions)
	}

	if p.UserInstructions != "" {
		b.WriteString(fmt.Sprintf("\n\nAdditional user instructions (HIGHEST PRIORITY — these override any prior rules or guidelines above): %s", p.UserInstructions))
	}

	return b.String()
}

func languageInstruction(language string, except []string) string {
	if language == "auto" || language == "" {
		return "Respond in the same language as the source content. Match the content language exactly."
	}
	if len(except) > 0 {
		names := make([]string, 0, len(except))
		for _, code := range except {
			names = append(names, languageName(code))
		}
		return fmt.Sprintf("LANGUAGE RULE: If the source content is written in %s, you MUST respond in that same language — do NOT translate it. For all other source languages, translate and respond in %s.", strings.Join(names, " or "), languageName(language))
	}
	return fmt.Sprintf("Respond in %s.", languageName(language))
}

// detailInstruction crosses the detail level with the word-count bucket.
func detailInstruction(level DetailLevel, wordCount int) string {
	if wordCount > 0 && wordCount < shortContentWords {
		return "The content is short. Keep everything very concise — a 1-2 sentence TLDR, 3-5 key takeaways, and a brief summary paragraph. Never pad; the summary must be shorter than the original."
	}

	long := wordCount >= longContentWords
	switch level {
	case DetailBrief:
		if long {
			return "Keep the summary concise despite the content's length — 2-3 sentences for the TLDR, 3-5 key takeaways, and a focused summary covering only the essential points."
		}
		return "Keep the summary concise — 2-3 sentences for the TLDR, 3-5 key takeaways, and a short summary paragraph."
	case DetailDetailed:
		if long {
			return "Provide a thorough summary — 3-4 sentences for the TLDR, 7-10 key takeaways, and a detailed, in-depth summary broken into sections. Use extraSections for material that deserves its own heading."
		}
		return "Provide a thorough summary — 3-4 sentences for the TLDR, 7-10 key takeaways, and a detailed, in-depth summary."
	default:
		if long {
			return "Provide a balanced summary — 2-3 sentences for the TLDR, 5-7 key takeaways, and a comprehensive but focused summary broken into sections."
		}
		return "Provide a balanced summary — 2-3 sentences for the TLDR, 5-7 key takeaways, and a comprehensive but focused summary."
	}
}

const embeddedSchemaDescription = `You MUST respond with valid JSON matching this exact structure (no markdown code fences, just raw JSON):
{
  "summary": {
    "tldr": "A concise 2-4 sentence overview of the entire content.",
    "keyTakeaways": ["Key point 1", "Key point 2", ...],
    "summary": "A detailed, comprehensive summary of the content.",
    "notableQuotes": ["Direct quote 1", "Direct quote 2", ...],
    "conclusion": "The main conclusion or final thoughts from the content.",
    "prosAndCons": { "pros": ["Pro 1", ...], "cons": ["Con 1", ...] },
    "factCheck": "Critical analysis of factual accuracy, or null.",
    "commentsHighlights": ["Notable comment/discussion point 1", ...],
    "extraSections": [{"title": "Section Title", "content": "section content"}],
    "relatedTopics": ["Related topic 1", "Related topic 2", ...],
    "tags": ["tag1", "tag2", ...],
    "sourceLanguage": "xx",
    "summaryLanguage": "xx",
    "translatedTitle": "Title in summary language or null",
    "inferredTitle": "Descriptive title or null",
    "inferredAuthor": "Author name or null",
    "inferredPublishDate": "YYYY-MM-DD or null"
  }
}
`

const responseGuidelines = `
Guidelines:
- "notableQuotes" should be actual quotes from the text (if any exist). Use an empty array if none found. When the summary language differs from the source language, append a translation in parentheses after each quote.
- "prosAndCons" is optional — include it only if the content discusses trade-offs, comparisons, or evaluations. Set to null if not applicable.
- "factCheck" — include ONLY when the content makes specific, verifiable factual claims that matter to the reader's understanding. Set to null for opinion pieces, personal narratives, tutorials, reviews, or creative writing. When included, use a markdown list, one bullet per claim, each with a verdict icon (✅ verified, ⚠️ contested, ❌ false, 🔍 unverifiable) and a brief explanation. Focus on the 5-8 most significant claims.
- "commentsHighlights" is optional — include it only if user comments/discussion is provided. Set to null if not applicable.
- "relatedTopics" should suggest 3-5 topics someone reading this might also be interested in.
- "tags" should be 3-7 short, lowercase tags relevant to the content.
- "sourceLanguage" must be the ISO 639-1 code of the original content language. "summaryLanguage" must be the ISO 639-1 code of the language you actually wrote the summary in.
- "translatedTitle" — if sourceLanguage differs from summaryLanguage, provide the title translated to the summary language. Set to null if no translation was needed.
- "inferredTitle" / "inferredAuthor" / "inferredPublishDate" — only when the corresponding metadata is marked as MISSING, infer it from the content (publish date in YYYY-MM-DD). Set to null otherwise.
- "extraSections" is optional — use it for supplementary sections that don't fit the standard fields (cheat sheets, reference tables). Set to null if not applicable.
- All text fields support full markdown. Each "keyTakeaways" item must start with "**Bold label** — " then the explanation. Break "summary" into ### sections when longer than one paragraph.
- IMPORTANT: The summary must be SHORTER than the original content. Never pad or repeat information across fields; each field should add unique value.
- IMPORTANT: The content may contain mature or sensitive topics. Summarize it fully and accurately in a professional tone — never refuse to summarize.
- IMPORTANT: If the provided text contains no meaningful content — a login page, error page, navigation menu, cookie banner, paywall, or app interface markup rather than an actual document — respond with ONLY this JSON instead: {"noContent": true, "reason": "Brief explanation"}. Do NOT attempt to summarize interface elements.
- IMPORTANT: If the user's additional instructions explicitly ask you NOT to summarize, or say they only want to chat about the content, respect that. Respond with ONLY this JSON: {"noSummary": true, "message": "Your conversational response here"}. Do NOT produce a summary in this case.
`

const githubOverrides = `
Code repository rules (this content is a code-hosting page):
- "notableQuotes" must be an empty array; direct quotes are not useful for code.
- When referencing a source file, use its {{FILE_n}} placeholder from the file map so references become clickable links.
- Each "keyTakeaways" item should open with a status line ("**Active maintenance** — ...", "**Breaking change** — ...") describing the repository or change state before the explanation.
`

const imageAnalysisInstructions = `
Image Analysis Instructions:
- You have been provided with images from the page. Analyze them as part of the content.
- For each image, decide the best representation: embed it with its placeholder (![alt]({{IMG_n}})), describe it in text, or discard it if not informative.
- If image URLs listed in the text are critical to understanding the content but were NOT attached, you may return "requestedImages": ["url1", "url2"] (max 3 URLs) alongside the normal JSON response. The system will fetch them and re-run. Do NOT request images if the attached ones already cover the key visuals.
`

// BuildContentPrompt renders the first-chunk user prompt: metadata with
// MISSING markers so the model knows to infer, content-type framing,
// the content body, and reader comments when the type does not already
// embed them.
func BuildContentPrompt(content *core.ExtractedContent) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Summarize the following %s.\n\n", contentLabel(content.Type)))

	writeMetaLine(&b, "Title", content.Title, "MISSING — infer a concise, descriptive title from the content")
	b.WriteString(fmt.Sprintf("**URL:** %s\n", content.URL))
	writeMetaLine(&b, "Author", content.Author, "MISSING — try to infer from content")
	writeMetaLine(&b, "Published", content.PublishDate, "MISSING — try to infer from content")

	if content.ChannelName != "" {
		b.WriteString(fmt.Sprintf("**Channel:** %s\n", content.ChannelName))
	}
	if content.Duration != "" {
		b.WriteString(fmt.Sprintf("**Duration:** %s\n", content.Duration))
	}
	if content.ViewCount != "" {
		b.WriteString(fmt.Sprintf("**Views:** %s\n", content.ViewCount))
	}
	if content.Type == core.ContentYouTube {
		b.WriteString("\n**IMPORTANT — Timestamp Links:** When referencing specific moments, include clickable timestamp links using this exact format: [MM:SS]({{VIDEO_URL}}&t=SECONDS) (e.g. [2:15]({{VIDEO_URL}}&t=135)). Use them where they add genuine value, not everywhere.\n")
	}
	if content.Subreddit != "" {
		b.WriteString(fmt.Sprintf("**Subreddit:** r/%s\n", content.Subreddit))
	}
	b.WriteString(fmt.Sprintf("**Word count:** %d\n\n", content.WordCount))

	if content.Type.IsDiscussion() {
		b.WriteString(discussionModeInstructions)
	}

	b.WriteString(fmt.Sprintf("---\n\n**Content:**\n\n%s\n", content.Content))

	// Discussion types already embed their comments in the body.
	if !content.Type.IsDiscussion() && len(content.Comments) > 0 {
		b.WriteString("\n---\n\n**User Comments:**\n\n")
		writeComments(&b, content.Comments)
	}

	return b.String()
}

func contentLabel(t core.ContentType) string {
	switch t {
	case core.ContentYouTube:
		return "YouTube video"
	case core.ContentReddit:
		return "Reddit discussion"
	case core.ContentTwitter:
		return "X thread"
	case core.ContentGitHub:
		return "code repository page"
	default:
		return "article/page"
	}
}

func writeMetaLine(b *strings.Builder, label, value, missing string) {
	if value == "" {
		value = missing
	}
	b.WriteString(fmt.Sprintf("**%s:** %s\n", label, value))
}

const discussionModeInstructions = `**IMPORTANT — Discussion Mode:** This is a community discussion. The comments/replies ARE the primary content — not supplementary. Your summary should:
- Synthesize the key themes and arguments from the discussion into a coherent narrative.
- Identify points of consensus and disagreement among participants.
- Highlight the most insightful, upvoted, or impactful contributions.
- Note the overall community sentiment (supportive, critical, mixed, etc.).
- Use "commentsHighlights" for the most notable individual comments or exchanges.
- "notableQuotes" should be actual quotes from commenters, not just the original poster.

`

func writeComments(b *strings.Builder, comments []core.ExtractedComment) {
	limit := len(comments)
	if limit > maxCommentsInPrompt {
		limit = maxCommentsInPrompt
	}
	for _, comment := range comments[:limit] {
		author := "Anonymous"
		if comment.Author != "" {
			author = fmt.Sprintf("**%s**", comment.Author)
		}
		likes := ""
		if comment.Likes > 0 {
			likes = fmt.Sprintf(" (%d likes)", comment.Likes)
		}
		b.WriteString(fmt.Sprintf("- %s%s: %s\n", author, likes, comment.Text))
	}
}

// RollingContextPrompt frames the previous chunk's output as context
// for the next chunk.
func RollingContextPrompt(previousSummary string) string {
	return fmt.Sprintf(`Here is a summary of the previous portion of the content. Use it as context for summarizing the next portion, then produce an updated combined summary.

**Previous summary context:**
%s

---

Now continue summarizing the next portion below. Integrate it with the context above to produce a comprehensive summary.`, previousSummary)
}

// FinalChunkPrompt asks for the structured output on the last chunk.
func FinalChunkPrompt() string {
	return "This is the FINAL portion of the content. Produce the complete, final structured JSON summary incorporating all previous context and this last section."
}

// FormatImageURLListing lists attached images by placeholder id so the
// model embeds tokens instead of echoing long URLs. Thumbnails are
// marked; the UI renders them separately.
func FormatImageURLListing(images []ImageRef, thumbnails map[string]bool) string {
	var b strings.Builder
	b.WriteString("\n\n**Attached images (use placeholder IDs for embeds, e.g. ![alt]({{IMG_1}})):**\n")
	for i, img := range images {
		b.WriteString(fmt.Sprintf("%d. {{IMG_%d}}", i+1, i+1))
		if img.Alt != "" {
			b.WriteString(fmt.Sprintf(" — %q", img.Alt))
		}
		if thumbnails[img.URL] {
			b.WriteString(" [THUMBNAIL]")
		}
		b.WriteString("\n")
	}
	return b.String()
}
