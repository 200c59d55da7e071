// Package urlvalidator reconciles law-site URLs cited in model output
// against the URLs present in retrieval evidence. It only ever rewrites a
// cited URL to a more complete form of itself; it never invents URLs.
package urlvalidator

import (
	"log/slog"
	"regexp"
	"strings"

	"lexgate/internal/domain/models"
)

// Accepted URL marker syntaxes (see the evidence format notes in the tenant
// knowledge pipeline):
//   - canonical law-site URL with idnorma/idparte query parameters
//   - legacy metadata line  **ulr parte norma especifica pdf**: <URL>
//   - block markers         >>>ulr_start<<< <URL> >>>ulr_end<<<
var (
	reCanonicalURL = regexp.MustCompile(`https?://(?:www\.)?[^\s\]\)"'<>]+/nav(?:igate|egar|egate)\?[^\s\]\)"'<>]+`)
	reLegacyLine   = regexp.MustCompile(`(?i)\*\*ulr parte norma especifica pdf\*\*:\s*(\S+)`)
	reBlockMarker  = regexp.MustCompile(`(?s)>>>ulr_start<<<\s*(.*?)\s*>>>ulr_end<<<`)

	reIDNorma = regexp.MustCompile(`(?i)[?&]idnorma=(\d+)`)
	reIDParte = regexp.MustCompile(`(?i)[?&]idparte=(\d+)`)

	// Chunk header: "## <norm name> articulo <number>"
	reChunkHeader = regexp.MustCompile(`(?im)^##\s*(.+?)\s+art[ií]culo\s+(\d+[a-z]*)\s*$`)
)

// urlInfo associates one evidence URL with the article it documents.
type urlInfo struct {
	Article  string
	NormName string
	ChunkID  string
}

// Validator indexes evidence URLs and repairs citations in output text.
type Validator struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Validator {
	return &Validator{logger: logger}
}

// Validate runs the full reconciliation over text with the given evidence.
func (v *Validator) Validate(text string, evidence []models.EvidenceChunk) *models.URLValidation {
	result := &models.URLValidation{Text: text}

	urlIndex := make(map[string]urlInfo)
	var urlOrder []string
	articleToURL := make(map[string]string)

	for _, chunk := range evidence {
		norm, article := parseChunkHeader(chunk.Text)
		for _, u := range ExtractURLs(chunk.Text) {
			if _, seen := urlIndex[u]; !seen {
				urlIndex[u] = urlInfo{Article: article, NormName: norm, ChunkID: chunk.ID}
				urlOrder = append(urlOrder, u)
			}
			// Index the idparte-less variant too: models frequently cite the
			// base form of a URL whose complete form is in evidence.
			if base := stripIDParte(u); base != u {
				if _, seen := urlIndex[base]; !seen {
					urlIndex[base] = urlInfo{Article: article, NormName: norm, ChunkID: chunk.ID}
				}
			}
			if norm == "" || article == "" {
				continue
			}
			key := articleKey(norm, article)
			existing, ok := articleToURL[key]
			switch {
			case !ok:
				articleToURL[key] = u
			case !IsComplete(existing) && IsComplete(u):
				// Prefer URLs carrying both idnorma and idparte.
				articleToURL[key] = u
			}
		}
	}

	result.Stats.EvidenceURLs = len(urlOrder)
	result.Stats.ArticlesIndexed = len(articleToURL)

	for _, cited := range ExtractURLs(text) {
		info, grounded := urlIndex[cited]
		if !grounded {
			result.Warnings = append(result.Warnings, models.URLWarning{
				URL:    cited,
				Reason: "URL not grounded in retrieval evidence",
			})
			continue
		}
		if IsComplete(cited) || info.NormName == "" || info.Article == "" {
			continue
		}
		complete, ok := articleToURL[articleKey(info.NormName, info.Article)]
		if !ok || complete == cited || !IsComplete(complete) {
			continue
		}
		result.Text = replaceCitedURL(result.Text, cited, complete)
		result.Corrections = append(result.Corrections, models.URLCorrection{
			Original:  cited,
			Corrected: complete,
			NormName:  info.NormName,
			Article:   info.Article,
		})
	}

	result.Stats.URLsCorrected = len(result.Corrections)
	result.Stats.URLsWarned = len(result.Warnings)

	if v.logger != nil && (result.Stats.URLsCorrected > 0 || result.Stats.URLsWarned > 0) {
		v.logger.Info("url validation finished",
			"evidence_urls", result.Stats.EvidenceURLs,
			"articles_indexed", result.Stats.ArticlesIndexed,
			"corrected", result.Stats.URLsCorrected,
			"warned", result.Stats.URLsWarned,
		)
	}

	return result
}

// ExtractURLs collects all unique law-site URLs found in text under the three
// accepted syntaxes, preserving first-occurrence order.
func ExtractURLs(text string) []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		u = strings.TrimRight(u, ".,;")
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	for _, m := range reBlockMarker.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range reLegacyLine.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, u := range reCanonicalURL.FindAllString(text, -1) {
		add(u)
	}
	return urls
}

// replaceCitedURL rewrites whole-URL occurrences of cited to complete. A
// plain substring replace would also hit URLs that merely start with the
// cited form, duplicating their remaining query parameters.
func replaceCitedURL(text, cited, complete string) string {
	return reCanonicalURL.ReplaceAllStringFunc(text, func(match string) string {
		trimmed := strings.TrimRight(match, ".,;")
		if trimmed != cited {
			return match
		}
		return complete + match[len(trimmed):]
	})
}

// IsComplete reports whether a canonical URL carries both idnorma and
// idparte parameters.
func IsComplete(url string) bool {
	return reIDNorma.MatchString(url) && reIDParte.MatchString(url)
}

// parseChunkHeader derives (normalized norm name, article number) from the
// chunk's leading "## ..." line. Empty strings when no header is present.
func parseChunkHeader(text string) (string, string) {
	m := reChunkHeader.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	norm := strings.ToLower(strings.TrimSpace(m[1]))
	article := strings.ToLower(strings.TrimSpace(m[2]))
	return norm, article
}

func articleKey(norm, article string) string {
	return strings.ToLower(norm) + "|" + strings.ToLower(article)
}

var (
	reIDParteMid  = regexp.MustCompile(`(?i)&idparte=\d+`)
	reIDParteLead = regexp.MustCompile(`(?i)\?idparte=\d+&`)
)

// stripIDParte removes the idparte parameter, keeping the query well formed.
func stripIDParte(url string) string {
	out := reIDParteMid.ReplaceAllString(url, "")
	out = reIDParteLead.ReplaceAllString(out, "?")
	return out
}
