package fetch

import (
	"context"
	"time"

	"github.com/jonathan/vulture/internal/logger"
)

// TextFetcher turns a job URL into posting text. It never fails: any error
// yields an empty string.
type TextFetcher struct {
	Options    *Options
	UseBrowser bool // render short pages in Chrome
	Headless   bool
	Log        *logger.Logger
}

// NewTextFetcher creates a fetcher with the given timeout
func NewTextFetcher(timeout time.Duration, useBrowser, headless bool, log *logger.Logger) *TextFetcher {
	opts := DefaultOptions()
	if timeout > 0 {
		opts.Timeout = timeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TextFetcher{Options: opts, UseBrowser: useBrowser, Headless: headless, Log: log}
}

// JobText fetches and extracts the posting at jobURL.
func (f *TextFetcher) JobText(ctx context.Context, jobURL string) string {
	platform := DetectPlatform(jobURL)
	selectors := PlatformContentSelectors(platform)
	noise := PlatformNoiseSelectors(platform)

	var text string
	res, err := URL(ctx, jobURL, f.Options)
	if err != nil {
		f.Log.Warn("job fetch failed", "url", jobURL, "error", err)
	} else if text, err = ExtractMainText(res.HTML, selectors, noise...); err != nil {
		f.Log.Warn("job text extraction failed", "url", jobURL, "error", err)
		text = ""
	}

	if !f.UseBrowser || !ShouldUseBrowser(text) {
		return text
	}

	html, err := Render(ctx, jobURL, RenderOptions{Timeout: f.Options.Timeout, Headless: f.Headless})
	if err != nil {
		f.Log.Warn("browser render failed", "url", jobURL, "error", err)
		return text
	}
	rendered, err := ExtractMainText(html, selectors, noise...)
	if err != nil || len(rendered) <= len(text) {
		return text
	}
	return rendered
}
