package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"condense/internal/config"
	"condense/internal/core"
	"condense/internal/fetch"
	"condense/internal/llm"
	"condense/internal/logger"
	"condense/internal/store"
	"condense/internal/summarize"
)

// NewSummarizeCmd creates the summarize command
func NewSummarizeCmd() *cobra.Command {
	summarizeCmd := &cobra.Command{
		Use:   "summarize [FILE]",
		Short: "Summarize extracted content into a structured document",
		Long: `Summarize extracted page content with the configured LLM provider.

The input FILE is a JSON document describing the extracted content
(title, url, content type, text, comments, images). Use "-" to read it
from stdin, or pass --text to treat the file as plain article text.

Content larger than the provider's context window is chunked and
summarized with rolling context. Results are cached; identical requests
are served from the cache until the entry expires.

Examples:
  # Summarize extracted content from a JSON file
  condense summarize article.json

  # Pipe extracted content in
  extractor https://example.com/post | condense summarize -

  # Plain text input with explicit metadata
  condense summarize notes.txt --text --url https://example.com --title "Notes"

  # More detail, fixed output language, fresh run
  condense summarize article.json --detail detailed --language German --no-cache

  # Machine-readable output
  condense summarize article.json --format json --output summary.json`,
		Args: cobra.ExactArgs(1),
		Run:  summarizeRunFunc,
	}

	summarizeCmd.Flags().Bool("text", false, "Treat the input file as plain text instead of extracted JSON")
	summarizeCmd.Flags().String("url", "", "Source URL for plain text input")
	summarizeCmd.Flags().String("title", "", "Title for plain text input")
	summarizeCmd.Flags().String("detail", "", "Summary detail: brief, standard, detailed")
	summarizeCmd.Flags().String("language", "", "Output language (default: match the source)")
	summarizeCmd.Flags().String("instructions", "", "Extra instructions for the model")
	summarizeCmd.Flags().String("provider", "", "Override the configured provider")
	summarizeCmd.Flags().String("model", "", "Override the configured model")
	summarizeCmd.Flags().StringP("format", "f", "terminal", "Output format: terminal, json, markdown")
	summarizeCmd.Flags().StringP("output", "o", "", "Output file path (for json/markdown formats)")
	summarizeCmd.Flags().Bool("no-cache", false, "Skip the summary cache and force a fresh run")
	summarizeCmd.Flags().Bool("image-analysis", false, "Let the model request page images for analysis")

	return summarizeCmd
}

func summarizeRunFunc(cmd *cobra.Command, args []string) {
	textMode, _ := cmd.Flags().GetBool("text")
	format, _ := cmd.Flags().GetString("format")
	outputFile, _ := cmd.Flags().GetString("output")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	validFormats := []string{"terminal", "json", "markdown"}
	if !contains(validFormats, format) {
		fmt.Fprintf(os.Stderr, "Error: Invalid format '%s'. Valid formats: %s\n",
			format, strings.Join(validFormats, ", "))
		os.Exit(1)
	}

	content, err := readContent(cmd, args[0], textMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()
	providerCfg, err := providerFromFlags(cmd, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	provider, err := llm.NewProvider(providerCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := optionsFromFlags(cmd, cfg, providerCfg)

	logger.Info("Starting summarization",
		"url", content.URL, "type", string(content.Type),
		"provider", provider.ID(), "model", providerCfg.Model)

	// Cache lookup
	var cacheStore *store.Store
	if cfg.Cache.Enabled && !noCache {
		cacheStore, err = store.NewStore(cfg.Cache.Directory)
		if err != nil {
			logger.Error("Failed to initialize cache store", err)
			// Continue without cache rather than failing
		}
	}
	if cacheStore != nil {
		defer func() { _ = cacheStore.Close() }()
	}

	cacheKey := store.CacheKey(store.CacheKeyParams{
		URL:              content.URL,
		Detail:           string(opts.Detail),
		Language:         opts.Language,
		LanguageExcept:   strings.Join(opts.LanguageExcept, ","),
		UserInstructions: opts.UserInstructions,
		Model:            providerCfg.Model,
		ContentHash:      store.ContentHash(content.Content),
	})

	if cacheStore != nil {
		cached, err := cacheStore.GetCachedSummary(cacheKey, cfg.Cache.TTLDuration())
		if err == nil && cached != nil {
			fmt.Fprintln(os.Stderr, "Using cached summary")
			if err := writeResult(cached, content, format, outputFile); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	doc, err := summarize.Summarize(context.Background(), provider, content, opts)
	if err != nil {
		logger.Error("Failed to summarize content", err, "url", content.URL)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	doc.Model = providerCfg.Model

	if cacheStore != nil {
		if err := cacheStore.CacheSummary(cacheKey, content.URL, doc); err != nil {
			logger.Error("Failed to cache summary", err)
			// Continue without caching rather than failing
		}
	}

	if err := writeResult(doc, content, format, outputFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// readContent loads the input, either extracted JSON or plain text.
func readContent(cmd *cobra.Command, path string, textMode bool) (*core.ExtractedContent, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	if textMode {
		url, _ := cmd.Flags().GetString("url")
		title, _ := cmd.Flags().GetString("title")
		text := string(data)
		return &core.ExtractedContent{
			Type:      core.ContentGeneric,
			URL:       url,
			Title:     title,
			Content:   text,
			WordCount: len(strings.Fields(text)),
		}, nil
	}

	var content core.ExtractedContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("failed to parse extracted content: %w", err)
	}
	if content.Type == "" {
		content.Type = core.ContentGeneric
	}
	if content.WordCount == 0 {
		content.WordCount = len(strings.Fields(content.Content))
	}
	return &content, nil
}

// providerFromFlags resolves the provider config, applying overrides.
func providerFromFlags(cmd *cobra.Command, cfg *config.Config) (core.ProviderConfig, error) {
	providerID, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")

	var pc core.ProviderConfig
	if providerID != "" {
		var ok bool
		pc, ok = cfg.Provider.Providers[providerID]
		if !ok {
			pc = core.ProviderConfig{}
		}
		pc.ProviderID = providerID
	} else {
		var err error
		pc, err = cfg.ActiveProvider()
		if err != nil {
			return core.ProviderConfig{}, err
		}
	}

	if model != "" {
		pc.Model = model
	}
	return pc, nil
}

// optionsFromFlags builds run options from configuration plus overrides.
func optionsFromFlags(cmd *cobra.Command, cfg *config.Config, pc core.ProviderConfig) summarize.Options {
	opts := summarize.DefaultOptions()

	if cfg.Summary.Detail != "" {
		opts.Detail = summarize.DetailLevel(cfg.Summary.Detail)
	}
	if detail, _ := cmd.Flags().GetString("detail"); detail != "" {
		opts.Detail = summarize.DetailLevel(detail)
	}

	if cfg.Summary.Language != "" {
		opts.Language = cfg.Summary.Language
	}
	if language, _ := cmd.Flags().GetString("language"); language != "" {
		opts.Language = language
	}
	if cfg.Summary.LanguageExcept != "" {
		opts.LanguageExcept = strings.Split(cfg.Summary.LanguageExcept, ",")
	}

	opts.UserInstructions = cfg.Summary.UserInstructions
	if instructions, _ := cmd.Flags().GetString("instructions"); instructions != "" {
		opts.UserInstructions = instructions
	}

	if cfg.Summary.MaxRetries > 0 {
		opts.MaxRetries = cfg.Summary.MaxRetries
	}
	opts.RetryDelay = cfg.Summary.RetryDelayDuration()
	if pc.ContextWindow > 0 {
		opts.ContextWindow = pc.ContextWindow
	} else if def, ok := llm.GetDefinition(pc.ProviderID); ok {
		opts.ContextWindow = def.DefaultContextWindow
	}

	imageAnalysis, _ := cmd.Flags().GetBool("image-analysis")
	opts.ImageAnalysis = imageAnalysis || cfg.Summary.ImageAnalysis
	if opts.ImageAnalysis {
		opts.Fetcher = fetch.NewImageFetcher()
	}

	lastChunk := -1
	opts.Observer = summarize.Observer{
		OnChunkProgress: func(chunkIndex, totalChunks int) {
			if totalChunks > 1 && chunkIndex != lastChunk {
				lastChunk = chunkIndex
				fmt.Fprintf(os.Stderr, "Summarizing part %d of %d...\n", chunkIndex+1, totalChunks)
			}
		},
	}

	return opts
}

// writeResult renders the document in the requested format.
func writeResult(doc *core.SummaryDocument, content *core.ExtractedContent, format, outputFile string) error {
	switch format {
	case "json":
		return outputJSON(doc, outputFile)
	case "markdown":
		return outputMarkdown(doc, content, outputFile)
	default:
		fmt.Println(renderDocument(doc, content))
		return nil
	}
}

func outputJSON(doc *core.SummaryDocument, outputFile string) error {
	jsonData, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
			return fmt.Errorf("failed to write JSON file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "JSON output saved to: %s\n", outputFile)
	} else {
		fmt.Printf("%s\n", jsonData)
	}

	return nil
}

func outputMarkdown(doc *core.SummaryDocument, content *core.ExtractedContent, outputFile string) error {
	var b strings.Builder

	title := content.Title
	if title == "" {
		title = doc.InferredTitle
	}
	if doc.TranslatedTitle != "" {
		title = doc.TranslatedTitle
	}
	if title != "" {
		b.WriteString(fmt.Sprintf("# %s\n\n", title))
	}
	if content.URL != "" {
		b.WriteString(fmt.Sprintf("**Source:** [%s](%s)\n", content.URL, content.URL))
	}
	b.WriteString(fmt.Sprintf("**Processed:** %s\n\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC")))

	b.WriteString("## TLDR\n\n")
	b.WriteString(doc.TLDR + "\n\n")

	if len(doc.KeyTakeaways) > 0 {
		b.WriteString("## Key Takeaways\n\n")
		for _, t := range doc.KeyTakeaways {
			b.WriteString(fmt.Sprintf("- %s\n", t))
		}
		b.WriteString("\n")
	}

	if doc.Summary != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(doc.Summary + "\n\n")
	}

	if len(doc.NotableQuotes) > 0 {
		b.WriteString("## Notable Quotes\n\n")
		for _, q := range doc.NotableQuotes {
			b.WriteString(fmt.Sprintf("> %s\n\n", q))
		}
	}

	if doc.ProsAndCons != nil && (len(doc.ProsAndCons.Pros) > 0 || len(doc.ProsAndCons.Cons) > 0) {
		b.WriteString("## Pros and Cons\n\n")
		for _, p := range doc.ProsAndCons.Pros {
			b.WriteString(fmt.Sprintf("- 👍 %s\n", p))
		}
		for _, c := range doc.ProsAndCons.Cons {
			b.WriteString(fmt.Sprintf("- 👎 %s\n", c))
		}
		b.WriteString("\n")
	}

	if len(doc.CommentsHighlights) > 0 {
		b.WriteString("## From the Comments\n\n")
		for _, c := range doc.CommentsHighlights {
			b.WriteString(fmt.Sprintf("- %s\n", c))
		}
		b.WriteString("\n")
	}

	for name, body := range doc.ExtraSections {
		b.WriteString(fmt.Sprintf("## %s\n\n%s\n\n", name, body))
	}

	if doc.Conclusion != "" {
		b.WriteString("## Conclusion\n\n")
		b.WriteString(doc.Conclusion + "\n\n")
	}

	if doc.FactCheck != "" {
		b.WriteString("## Fact Check\n\n")
		b.WriteString(doc.FactCheck + "\n\n")
	}

	if len(doc.Tags) > 0 {
		b.WriteString(fmt.Sprintf("**Tags:** %s\n", strings.Join(doc.Tags, ", ")))
	}

	markdownContent := b.String()

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdownContent), 0644); err != nil {
			return fmt.Errorf("failed to write markdown file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Markdown output saved to: %s\n", outputFile)
	} else {
		fmt.Printf("%s", markdownContent)
	}

	return nil
}

// Helper functions
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
