package handlers

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"condense/internal/core"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sourceStyle  = lipgloss.NewStyle().Faint(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).MarginTop(1)
	quoteStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8")).PaddingLeft(2)
	tagStyle     = lipgloss.NewStyle().Faint(true)
	creditsStyle = lipgloss.NewStyle().Faint(true).MarginTop(1)
)

// renderDocument formats a summary document for terminal display.
func renderDocument(doc *core.SummaryDocument, content *core.ExtractedContent) string {
	var b strings.Builder

	title := content.Title
	if title == "" {
		title = doc.InferredTitle
	}
	if doc.TranslatedTitle != "" {
		title = doc.TranslatedTitle
	}
	if title != "" {
		b.WriteString(titleStyle.Render(title) + "\n")
	}
	if content.URL != "" {
		b.WriteString(sourceStyle.Render(content.URL) + "\n")
	}

	b.WriteString(headerStyle.Render("TLDR") + "\n")
	b.WriteString(doc.TLDR + "\n")

	if len(doc.KeyTakeaways) > 0 {
		b.WriteString(headerStyle.Render("Key Takeaways") + "\n")
		for _, t := range doc.KeyTakeaways {
			b.WriteString("  • " + t + "\n")
		}
	}

	if doc.Summary != "" {
		b.WriteString(headerStyle.Render("Summary") + "\n")
		b.WriteString(doc.Summary + "\n")
	}

	if len(doc.NotableQuotes) > 0 {
		b.WriteString(headerStyle.Render("Notable Quotes") + "\n")
		for _, q := range doc.NotableQuotes {
			b.WriteString(quoteStyle.Render("“"+q+"”") + "\n")
		}
	}

	if doc.ProsAndCons != nil && (len(doc.ProsAndCons.Pros) > 0 || len(doc.ProsAndCons.Cons) > 0) {
		b.WriteString(headerStyle.Render("Pros and Cons") + "\n")
		for _, p := range doc.ProsAndCons.Pros {
			b.WriteString("  + " + p + "\n")
		}
		for _, c := range doc.ProsAndCons.Cons {
			b.WriteString("  - " + c + "\n")
		}
	}

	if len(doc.CommentsHighlights) > 0 {
		b.WriteString(headerStyle.Render("From the Comments") + "\n")
		for _, c := range doc.CommentsHighlights {
			b.WriteString("  • " + c + "\n")
		}
	}

	for name, body := range doc.ExtraSections {
		b.WriteString(headerStyle.Render(name) + "\n")
		b.WriteString(body + "\n")
	}

	if doc.Conclusion != "" {
		b.WriteString(headerStyle.Render("Conclusion") + "\n")
		b.WriteString(doc.Conclusion + "\n")
	}

	if doc.FactCheck != "" {
		b.WriteString(headerStyle.Render("Fact Check") + "\n")
		b.WriteString(doc.FactCheck + "\n")
	}

	if len(doc.Tags) > 0 {
		b.WriteString(tagStyle.Render("Tags: "+strings.Join(doc.Tags, ", ")) + "\n")
	}

	if doc.Provider != "" || doc.Model != "" {
		b.WriteString(creditsStyle.Render(fmt.Sprintf("Summarized by %s (%s)", doc.Model, doc.Provider)) + "\n")
	}

	return b.String()
}
