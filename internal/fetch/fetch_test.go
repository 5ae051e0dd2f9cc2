package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/vulture/internal/logger"
)

func TestURL_Success(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Backend Engineer</h1></body></html>"))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Contains(t, result.HTML, "Backend Engineer")
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestURL_InvalidURL(t *testing.T) {
	_, err := URL(context.Background(), "not-a-valid-url", nil)
	require.Error(t, err)

	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestURL_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.Contains(t, err.Error(), "404")
}

func TestExtractMainText_PrefersSelector(t *testing.T) {
	html := `<html><body>
		<nav>Navigation</nav>
		<div class="job-description">
			<h1>Data Engineer</h1>
			<p>Build pipelines.</p>
			<ul><li>Requires SQL</li></ul>
		</div>
		<footer>Footer</footer>
	</body></html>`

	text, err := ExtractMainText(html, JobPostingSelectors())
	require.NoError(t, err)
	assert.Equal(t, "Data Engineer\nBuild pipelines.\nRequires SQL", text)
}

func TestExtractMainText_FallbackToBody(t *testing.T) {
	text, err := ExtractMainText(`<html><body><p>Only   body</p><script>x()</script></body></html>`, []string{".missing"})
	require.NoError(t, err)
	assert.Equal(t, "Only body", text)
}

func TestExtractMainText_RemovesNoise(t *testing.T) {
	html := `<html><body><main><p>Role details</p><form id="application-form">Name</form></main></body></html>`
	text, err := ExtractMainText(html, []string{"main"}, PlatformNoiseSelectors(PlatformUnknown)...)
	require.NoError(t, err)
	assert.Equal(t, "Role details", text)
}

func TestTextFetcher_JobText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><main><h1>Platform Engineer</h1><p>Responsibilities include Go.</p></main></body></html>`))
	}))
	defer server.Close()

	f := NewTextFetcher(time.Second, false, true, logger.Nop())
	text := f.JobText(context.Background(), server.URL)
	assert.True(t, strings.HasPrefix(text, "Platform Engineer"))
	assert.Contains(t, text, "Responsibilities include Go.")
}

func TestTextFetcher_FailureYieldsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewTextFetcher(time.Second, false, true, nil)
	assert.Empty(t, f.JobText(context.Background(), server.URL))
	assert.Empty(t, f.JobText(context.Background(), "::bad"))
}

func TestShouldUseBrowser(t *testing.T) {
	assert.True(t, ShouldUseBrowser("short"))
	assert.False(t, ShouldUseBrowser(strings.Repeat("a", MinContentLength)))
}
