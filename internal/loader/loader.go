// Package loader turns external sources into ingestable documents.
//
// Two source kinds are supported: plain text or markdown files, and
// web pages. Web pages go through readability extraction so navigation
// chrome and boilerplate do not end up in the vector store.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

var (
	// ErrEmptyDocument indicates the source yielded no usable text.
	ErrEmptyDocument = errors.New("document has no content")

	// ErrUnsupportedScheme indicates the URL scheme is not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrBlockedHost indicates the URL targets the local or a private
	// network and was refused.
	ErrBlockedHost = errors.New("blocked host")
)

// DefaultFetchTimeout bounds one page fetch.
const DefaultFetchTimeout = 30 * time.Second

// maxBodySize caps how much of a response is read. Pages larger than
// this are almost never prose worth indexing.
const maxBodySize = 10 << 20 // 10 MiB

// Document is a loaded source ready for ingestion.
type Document struct {
	// Title is extracted from the page or derived from the filename.
	Title string

	// Content is the plain text body.
	Content string

	// SourceID identifies the origin: the cleaned file path or URL.
	SourceID string
}

// FromFile loads a plain text or markdown file. The title is derived
// from the filename with separators normalized to spaces.
func FromFile(path string) (Document, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator input
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", path, err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return Document{}, fmt.Errorf("%w: %s", ErrEmptyDocument, path)
	}

	return Document{
		Title:    titleFromPath(path),
		Content:  content,
		SourceID: filepath.Clean(path),
	}, nil
}

// Option configures FromURL.
type Option func(*fetchOptions)

type fetchOptions struct {
	allowPrivateHosts bool
}

// AllowPrivateHosts disables the private-network guard. Test use only;
// production fetches must never reach loopback or RFC 1918 addresses.
func AllowPrivateHosts() Option {
	return func(o *fetchOptions) {
		o.allowPrivateHosts = true
	}
}

// FromURL fetches a web page and extracts its readable text. Fetches
// to private networks, loopback and cloud metadata endpoints are
// refused, including via DNS rebinding and redirects.
func FromURL(ctx context.Context, rawURL string, opts ...Option) (Document, error) {
	var fo fetchOptions
	for _, opt := range opts {
		opt(&fo)
	}

	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return Document{}, fmt.Errorf("parsing URL: %w", err)
	}
	if pageURL.Scheme != "http" && pageURL.Scheme != "https" {
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, pageURL.Scheme)
	}

	client := &http.Client{Timeout: DefaultFetchTimeout}
	if !fo.allowPrivateHosts {
		guard := newURLGuard()
		if err := guard.validateHost(pageURL.Hostname()); err != nil {
			return Document{}, err
		}
		client.Transport = guard.transport()
		client.CheckRedirect = guard.checkRedirect
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return Document{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("fetching %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodySize), pageURL)
	if err != nil {
		return Document{}, fmt.Errorf("extracting readable content from %s: %w", pageURL, err)
	}

	content := strings.TrimSpace(article.TextContent)
	if content == "" {
		return Document{}, fmt.Errorf("%w: %s", ErrEmptyDocument, pageURL)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = pageURL.Host
	}

	return Document{
		Title:    title,
		Content:  content,
		SourceID: pageURL.String(),
	}, nil
}

// titleFromPath turns "notes/meditation_basics.md" into "meditation basics".
func titleFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}
