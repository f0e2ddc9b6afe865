// Package source loads raw documents from local files, glob patterns and
// http(s) URLs.
package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"

	"legalrag/internal/domain"
	"legalrag/internal/logger"
)

// DefaultMaxBytes limits the size of a single document.
const DefaultMaxBytes = 20 << 20

// textExtensions are read as text; anything else is rejected.
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
	"":      true,
}

// ocrExtensions need an extractor this system does not ship.
var ocrExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// Loader reads documents.
type Loader struct {
	client   *http.Client
	maxBytes int64
}

// NewLoader creates a loader; zero arguments select the defaults.
func NewLoader(timeout time.Duration, maxBytes int64) *Loader {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Loader{client: &http.Client{Timeout: timeout}, maxBytes: maxBytes}
}

// IsURL reports whether src is an http(s) URL.
func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Load returns the documents named by src. A glob pattern may expand to
// several files; a pattern matching nothing is treated as a plain path.
func (l *Loader) Load(ctx context.Context, src string) ([]domain.Document, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty source", domain.ErrInvalidSource)
	}
	if IsURL(src) {
		doc, err := l.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		return []domain.Document{doc}, nil
	}

	matches, err := filepath.Glob(src)
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %w", domain.ErrInvalidSource, src, err)
	}
	if matches == nil {
		matches = []string{src}
	}
	docs := make([]domain.Document, 0, len(matches))
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := l.readFile(m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (l *Loader) readFile(path string) (domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ocrExtensions[ext] {
		return domain.Document{}, fmt.Errorf("%w: %s needs text extraction", domain.ErrUnsupportedSource, path)
	}
	if !textExtensions[ext] {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidSource, err)
	}
	if info.IsDir() {
		return domain.Document{}, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidSource, path)
	}
	if info.Size() > l.maxBytes {
		return domain.Document{}, fmt.Errorf("%w: %s is larger than %d bytes", domain.ErrInvalidSource, path, l.maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidSource, err)
	}
	content := string(data)
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		if t := htmlTitle(content); t != "" {
			title = t
		}
	}
	logger.Debug("loaded %s (%d bytes)", path, len(data))
	return domain.Document{ID: DocumentID(path), Source: path, Title: title, Content: content}, nil
}

func (l *Loader) fetch(ctx context.Context, url string) (domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidSource, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return domain.Document{}, fmt.Errorf("%w: %s returned %s", domain.ErrInvalidSource, url, resp.Status)
	}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		if mt == "application/pdf" || strings.HasPrefix(mt, "image/") {
			return domain.Document{}, fmt.Errorf("%w: %s is %s", domain.ErrUnsupportedSource, url, mt)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: read %s: %w", domain.ErrInvalidSource, url, err)
	}
	if int64(len(data)) > l.maxBytes {
		return domain.Document{}, fmt.Errorf("%w: %s is larger than %d bytes", domain.ErrInvalidSource, url, l.maxBytes)
	}
	content := string(data)
	title := htmlTitle(content)
	if title == "" {
		title = url
	}
	logger.Debug("fetched %s (%d bytes)", url, len(data))
	return domain.Document{ID: DocumentID(url), Source: url, Title: title, Content: content}, nil
}

// htmlTitle returns the trimmed text of the first <title> element.
func htmlTitle(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			inTitle = string(name) == "title"
		case html.EndTagToken:
			inTitle = false
		case html.TextToken:
			if inTitle {
				return strings.Join(strings.Fields(string(z.Text())), " ")
			}
		}
	}
}

// DocumentID derives a stable document id from its source.
func DocumentID(src string) string {
	h := sha1.Sum([]byte(src))
	return hex.EncodeToString(h[:8])
}
