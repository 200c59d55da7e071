// Package webtool implements the navigate_web function tool: a bounded,
// domain-restricted page fetcher whose results are fed back to the model as
// tool output.
package webtool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"lexgate/internal/domain/models"
)

const (
	pageExcerptLimit = 4000
	maxBodyBytes     = 2 << 20

	defaultUserAgent = "lexgate-navigator/1.0"
)

// Page is one fetched page in a navigation result.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Excerpt string `json:"excerpt"`
}

// Result is the tool output serialized back to the model.
type Result struct {
	Pages []Page `json:"pages,omitempty"`
	Error string `json:"error,omitempty"`
}

// Navigator crawls starting from one URL, breadth-first, within the tenant's
// web-navigation bounds.
type Navigator struct {
	client *http.Client
	logger *slog.Logger
}

func NewNavigator(logger *slog.Logger) *Navigator {
	return &Navigator{
		client: &http.Client{},
		logger: logger,
	}
}

// Navigate runs the crawl. A disabled config or an inadmissible start URL
// yields an error Result, never a Go error: tool failures flow back to the
// model as data.
func (n *Navigator) Navigate(ctx context.Context, rawURL string, cfg models.WebNavigationConfig) Result {
	if !cfg.Enabled {
		return Result{Error: "disabled"}
	}
	start, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (start.Scheme != "http" && start.Scheme != "https") {
		return Result{Error: fmt.Sprintf("invalid url: %s", rawURL)}
	}
	if !Admitted(start.Hostname(), cfg) {
		return Result{Error: fmt.Sprintf("domain not permitted: %s", start.Hostname())}
	}

	type item struct {
		u     *url.URL
		depth int
	}
	queue := []item{{u: start, depth: 0}}
	visited := map[string]bool{canonical(start): true}

	var pages []Page
	for len(queue) > 0 && len(pages) < cfg.MaxPages {
		cur := queue[0]
		queue = queue[1:]

		page, links, err := n.fetch(ctx, cur.u, cfg)
		if err != nil {
			n.logger.Warn("page fetch failed", "url", cur.u.String(), "error", err)
			continue
		}
		pages = append(pages, page)

		if cur.depth >= cfg.MaxDepth {
			continue
		}
		for _, link := range links {
			next, err := cur.u.Parse(link)
			if err != nil || (next.Scheme != "http" && next.Scheme != "https") {
				continue
			}
			key := canonical(next)
			if visited[key] || !Admitted(next.Hostname(), cfg) {
				continue
			}
			visited[key] = true
			queue = append(queue, item{u: next, depth: cur.depth + 1})
		}
	}

	if len(pages) == 0 {
		return Result{Error: "no pages could be fetched"}
	}
	return Result{Pages: pages}
}

func (n *Navigator) fetch(ctx context.Context, u *url.URL, cfg models.WebNavigationConfig) (Page, []string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, nil, err
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := n.client.Do(req)
	if err != nil {
		return Page{}, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Page{}, nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Page{}, nil, err
	}

	title, text, links := ExtractContent(string(body))
	return Page{URL: u.String(), Title: title, Excerpt: Truncate(text, pageExcerptLimit)}, links, nil
}

// Admitted applies the tenant's domain policy: in allowlist mode the hostname
// or one of its parent domains must be listed; in denylist mode it must not.
func Admitted(hostname string, cfg models.WebNavigationConfig) bool {
	host := strings.ToLower(strings.TrimSuffix(hostname, "."))
	if cfg.Mode == "denylist" {
		return !matchesAny(host, cfg.DenyDomains)
	}
	return matchesAny(host, cfg.AllowDomains)
}

func matchesAny(host string, domains []string) bool {
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// ExtractContent parses HTML and returns the title, the visible text with
// script/style content removed and whitespace collapsed, and all <a href>
// values in document order.
func ExtractContent(rawHTML string) (title, text string, links []string) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		// Tolerant fallback: treat the payload as text.
		return "", collapseWhitespace(rawHTML), nil
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.ElementNode:
			switch node.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" && node.FirstChild != nil {
					title = strings.TrimSpace(node.FirstChild.Data)
				}
			case "a":
				for _, attr := range node.Attr {
					if attr.Key == "href" && attr.Val != "" && !strings.HasPrefix(attr.Val, "#") {
						links = append(links, attr.Val)
					}
				}
			}
		case html.TextNode:
			sb.WriteString(node.Data)
			sb.WriteByte(' ')
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return title, collapseWhitespace(sb.String()), links
}

// Truncate cuts text to at most limit runes.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func canonical(u *url.URL) string {
	c := *u
	c.Fragment = ""
	return c.String()
}
