package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html><head><title>Sample Article</title></head>
<body>
<article>
<h1>Sample Article</h1>
<p>This is the first paragraph with enough words to be considered actual
readable content by the extraction pass. It talks about growing tomatoes
on a balcony and keeps going for a little while longer.</p>
<h2>Watering</h2>
<p>Water twice a week. More in summer.</p>
<a href="/other">Other page</a>
<a href="https://example.org/external">External</a>
<a href="mailto:hi@example.com">Mail</a>
<a href="#section">Fragment</a>
<img src="/images/tomato.jpg" alt="A tomato">
</article>
</body></html>`

type rejectAll struct{}

func (rejectAll) Validate(string) error { return errors.New("blocked by policy") }

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	f := NewFetcher(nil, srv.Client(), nil)
	page, err := f.FetchPage(context.Background(), srv.URL+"/article")
	require.NoError(t, err)

	assert.Equal(t, "Sample Article", page.Title)
	assert.Contains(t, page.Text, "growing tomatoes")
	assert.Greater(t, page.WordCount, 20)

	require.GreaterOrEqual(t, len(page.Headings), 2)
	assert.Equal(t, Heading{Level: 1, Text: "Sample Article"}, page.Headings[0])
	assert.Equal(t, Heading{Level: 2, Text: "Watering"}, page.Headings[1])

	// mailto and fragment links are dropped, relative links resolved.
	var urls []string
	for _, l := range page.Links {
		urls = append(urls, l.URL)
	}
	assert.Contains(t, urls, srv.URL+"/other")
	assert.Contains(t, urls, "https://example.org/external")
	assert.Len(t, urls, 2)

	require.Len(t, page.Images, 1)
	assert.Equal(t, srv.URL+"/images/tomato.jpg", page.Images[0].URL)
	assert.Equal(t, "A tomato", page.Images[0].Alt)

	assert.True(t, page.Structure.HasArticle)
	assert.Equal(t, 2, page.Structure.Paragraphs)
}

func TestAnalyzeStructure(t *testing.T) {
	page := `<html><body>
		<nav><ul><li><a href="/">Home</a></li></ul></nav>
		<article>
			<section><p>one</p><p>two</p></section>
			<section><p>three</p><table><tr><td>x</td></tr></table></section>
		</article>
		<aside><form><input name="q"></form></aside>
	</body></html>`

	s := analyzeStructure([]byte(page))
	assert.True(t, s.HasNav)
	assert.True(t, s.HasArticle)
	assert.True(t, s.HasAside)
	assert.Equal(t, 2, s.Sections)
	assert.Equal(t, 3, s.Paragraphs)
	assert.Equal(t, 1, s.Lists)
	assert.Equal(t, 1, s.Tables)
	assert.Equal(t, 1, s.Forms)
}

func TestAnalyzeStructureGarbage(t *testing.T) {
	// The html parser is lenient; no input should panic.
	s := analyzeStructure([]byte("<<<>>>not html at all"))
	assert.Zero(t, s.Sections)
}

func TestFetchPageValidatorBlocks(t *testing.T) {
	f := NewFetcher(rejectAll{}, nil, nil)
	_, err := f.FetchPage(context.Background(), "http://example.com/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsafe URL")
}

func TestFetchPageRejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	f := NewFetcher(nil, srv.Client(), nil)
	_, err := f.FetchPage(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")
}

func TestFetchPageNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(nil, srv.Client(), nil)
	_, err := f.FetchPage(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestSiteCrawl(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body><a href="/about">About</a><a href="/blog">Blog</a></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>About</title></head><body></body></html>`))
	})
	mux.HandleFunc("/blog", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Blog</title></head><body><a href="https://elsewhere.example/x">off-site</a></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewSiteCrawler(nil, nil)
	pages, err := c.Crawl(context.Background(), srv.URL+"/", 10)
	require.NoError(t, err)

	titles := make(map[string]bool)
	for _, p := range pages {
		titles[p.Title] = true
	}
	assert.True(t, titles["Home"])
	assert.True(t, titles["About"])
	assert.True(t, titles["Blog"])
	assert.Len(t, pages, 3, "off-site link must not be followed")
}

func TestSiteCrawlPageCap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>P</title></head><body>
			<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a><a href="/d">d</a>
		</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewSiteCrawler(nil, nil)
	pages, err := c.Crawl(context.Background(), srv.URL+"/", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(pages), 2)
}

func TestSiteCrawlValidatorBlocks(t *testing.T) {
	c := NewSiteCrawler(rejectAll{}, nil)
	_, err := c.Crawl(context.Background(), "http://example.com/", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsafe URL")
}
