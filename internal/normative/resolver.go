package normative

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"lexgate/internal/domain/models"
)

// Citation grammar. Keys are uppercase norm shorthands (CCCH, CPCH, CTRIB,
// L20190, DFL1.2006, DL824.1974, D326.1989, ...); the article id is a number
// with an optional lowercase letter or ordinal suffix (1545, 41e, 21bis).
// Two accepted forms:
//
//	CCCH.Art1545      code+article, optional dot after Art
//	CCCH Artículo 1545   legacy whitespace form
const (
	keyPattern = `DFL\d+\.\d{4}|DL\d+(?:\.\d{4})?|D\d+\.\d{4}|L\d{4,6}|[A-Z]{2,10}`
	artPattern = `\d+(?:bis|ter|quater|quinquies|sexies|septies|octies|novies|decies|[a-z])?`
)

var (
	reCitation = regexp.MustCompile(
		`\b(` + keyPattern + `)(?:\.[Aa]rt\.?|\s+[Aa]rt(?:[ií]culo)?\.?\s+)(` + artPattern + `)\b`)
	reDLNoYear = regexp.MustCompile(`^DL\d+$`)
)

// ViewConfig selects the directive and per-view field whitelists.
// Empty whitelists include every field.
type ViewConfig struct {
	VerificationDirective string
	ModelViewFields       []string
	UserViewFields        []string
}

// Resolver extracts citations from model output, resolves them against the
// store, and renders the model and user annex views. View configuration is
// per call; tenants choose their own directive and field whitelists.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Extract returns the unique citations found in text, preserving
// first-occurrence order. Keys are uppercased, article ids lowercased.
func Extract(text string) []models.Citation {
	seen := make(map[models.Citation]bool)
	var out []models.Citation
	for _, m := range reCitation.FindAllStringSubmatch(text, -1) {
		c := models.Citation{
			Key:     strings.ToUpper(m[1]),
			Article: strings.ToLower(m[2]),
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// Process extracts and resolves every citation in text and renders both annex
// views under the given view configuration. Zero detected citations yields
// HasResults=false and no annexes.
func (r *Resolver) Process(ctx context.Context, text string, view ViewConfig) (*models.AnnexResult, error) {
	citations := Extract(text)
	if len(citations) == 0 {
		return &models.AnnexResult{HasResults: false}, nil
	}

	result := &models.AnnexResult{}
	var resolved []resolvedPair

	for _, c := range citations {
		row, err := r.resolve(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", c.Raw(), err)
		}
		if row == nil {
			result.Unresolved = append(result.Unresolved, c)
			continue
		}
		resolved = append(resolved, resolvedPair{citation: c, row: row})
	}

	if r.logger != nil {
		r.logger.Debug("normative citations processed",
			"detected", len(citations),
			"resolved", len(resolved),
			"unresolved", len(result.Unresolved),
		)
	}

	if len(resolved) == 0 {
		result.HasResults = false
		return result, nil
	}

	result.HasResults = true
	result.ModelView = renderModelView(view, resolved)
	result.UserView = renderUserView(view, resolved)
	return result, nil
}

type resolvedPair struct {
	citation models.Citation
	row      *models.ResolvedCitation
}

// resolve runs the lookup ladder: exact, normalized name, fuzzy name, then
// DL-variant disambiguation for year-less DL keys.
func (r *Resolver) resolve(ctx context.Context, c models.Citation) (*models.ResolvedCitation, error) {
	row, err := r.lookup(ctx, c.Key, c.Article)
	if err != nil || row != nil {
		return row, err
	}

	if !reDLNoYear.MatchString(c.Key) {
		return nil, nil
	}

	// DL disambiguation: a year-less DL key resolves only when exactly one
	// DL<n>.<year> variant holds the requested article.
	claves, err := r.store.DistinctClaves(ctx, c.Key+".")
	if err != nil {
		return nil, err
	}
	var matches []*models.ResolvedCitation
	for _, clave := range claves {
		variantRow, err := r.lookup(ctx, clave, c.Article)
		if err != nil {
			return nil, err
		}
		if variantRow != nil {
			matches = append(matches, variantRow)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 && r.logger != nil {
		r.logger.Warn("ambiguous DL citation left unresolved",
			"key", c.Key, "article", c.Article, "variants", len(matches))
	}
	return nil, nil
}

func (r *Resolver) lookup(ctx context.Context, clave, articulo string) (*models.ResolvedCitation, error) {
	row, err := r.store.FindExact(ctx, clave, articulo)
	if err != nil || row != nil {
		return row, err
	}

	row, err = r.store.FindByNormalizedName(ctx, clave, "articulo "+articulo)
	if err != nil || row != nil {
		return row, err
	}

	patterns := []string{
		"%articulo " + articulo + "%",
		"%artículo " + articulo + "%",
		"%art. " + articulo + "%",
	}
	return r.store.FindByNameLike(ctx, clave, patterns)
}
