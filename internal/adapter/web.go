// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/dispatch-engine/internal/httputil"
)

const (
	webMaxBody = 1 << 20
	webMaxText = 2000
)

var (
	titleTag   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTag  = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	anyTag     = regexp.MustCompile(`(?s)<[^>]+>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Web fetches arbitrary URLs. It backs the resolver's catch-all pattern.
//
// Operation "fetch" {url} returns {"url", "status", "content_type",
// "title", "text"} where text is a tag-stripped preview.
type Web struct {
	Client *httputil.Client
}

func (w *Web) Name() string { return "web" }

func (w *Web) Call(ctx context.Context, operation string, args map[string]any) (any, error) {
	if operation != "fetch" {
		return nil, Unsupported(w.Name(), operation)
	}
	target := StringArg(args, "url")
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return nil, fmt.Errorf("web: url must be http or https, got %q", target)
	}

	resp, err := w.Client.Get(ctx, target, map[string]string{"Accept": "text/html,text/plain;q=0.9,*/*;q=0.5"})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, webMaxBody))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", target, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetching %s: HTTP %d", target, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	page := map[string]any{
		"url":          resp.Request.URL.String(),
		"status":       resp.StatusCode,
		"content_type": contentType,
	}
	text := string(body)
	if strings.Contains(contentType, "html") || titleTag.MatchString(text) {
		if m := titleTag.FindStringSubmatch(text); m != nil {
			page["title"] = strings.TrimSpace(html.UnescapeString(whitespace.ReplaceAllString(m[1], " ")))
		}
		text = scriptTag.ReplaceAllString(text, " ")
		text = html.UnescapeString(anyTag.ReplaceAllString(text, " "))
	}
	page["text"] = preview(whitespace.ReplaceAllString(text, " "), webMaxText)
	return ToPayload(page)
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
