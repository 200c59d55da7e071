package normative

import (
	"strings"

	"lexgate/internal/domain/models"
)

// userViewTextLimit caps the truncated text field of user-view entries.
const userViewTextLimit = 500

// Model-view field labels, in render order.
var modelViewFields = []string{
	"clave",
	"norma",
	"tipo",
	"organismo",
	"articulo",
	"numero",
	"url",
	"vigencia",
	"fecha_version",
	"ruta",
	"materias",
	"bloque_juridico",
	"texto",
}

// renderModelView produces the verbose plain-text annex intended for
// follow-up verification prompts: the optional directive, then every
// whitelisted field of every resolved citation, article text verbatim.
func renderModelView(view ViewConfig, pairs []resolvedPair) string {
	var b strings.Builder

	if view.VerificationDirective != "" {
		b.WriteString(view.VerificationDirective)
		b.WriteString("\n\n")
	}

	include := fieldSet(view.ModelViewFields)

	for i, p := range pairs {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		b.WriteString("[" + p.citation.Raw() + "]\n")
		values := map[string]string{
			"clave":           p.row.Clave,
			"norma":           p.row.Norma,
			"tipo":            p.row.NormaTipo,
			"organismo":       p.row.NormaOrganismo,
			"articulo":        p.row.NombreParte,
			"numero":          p.row.NumeroArticulo,
			"url":             p.row.URL,
			"vigencia":        p.row.Clasificacion,
			"fecha_version":   p.row.FechaVersion,
			"ruta":            p.row.RutaCompleta,
			"materias":        p.row.Materias,
			"bloque_juridico": p.row.BloqueJuridico,
			"texto":           p.row.Texto,
		}
		for _, field := range modelViewFields {
			if include != nil && !include[field] {
				continue
			}
			if values[field] == "" {
				continue
			}
			b.WriteString(field + ": " + values[field] + "\n")
		}
	}

	return b.String()
}

// renderUserView produces the compact per-citation entries for client
// rendering, honoring the user-view field whitelist.
func renderUserView(view ViewConfig, pairs []resolvedPair) []models.AnnexEntry {
	include := fieldSet(view.UserViewFields)
	allowed := func(field string) bool {
		return include == nil || include[field]
	}

	entries := make([]models.AnnexEntry, 0, len(pairs))
	for _, p := range pairs {
		entry := models.AnnexEntry{Key: p.citation.Raw()}
		if allowed("norm") {
			entry.Norm = p.row.Norma
		}
		if allowed("article") {
			entry.Article = p.row.NombreParte
		}
		if allowed("url") {
			entry.URL = p.row.URL
		}
		if allowed("text") {
			entry.Text = truncate(p.row.Texto, userViewTextLimit)
		}
		if allowed("text_full") {
			entry.TextFull = p.row.Texto
		}
		entries = append(entries, entry)
	}
	return entries
}

func fieldSet(fields []string) map[string]bool {
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = true
	}
	return set
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
