// Package prompt builds the per-turn context prefix injected ahead of the
// conversation: wall-clock block, user identity, general context and tenant
// knowledge files.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"lexgate/internal/domain/models"
)

var spanishWeekdays = [...]string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// Inputs carries everything the injector needs for one turn. KnowledgeFiles
// arrive pre-loaded and pre-capped by the instance registry.
type Inputs struct {
	Config         *models.TenantConfig
	UserID         string
	DisplayName    string
	GeneralContext string
	KnowledgeFiles []models.KnowledgeFile
	Now            time.Time // zero value means time.Now()
}

// Build returns the context prefix: system block, user block, general-context
// block and instance-files block, blank-line joined. Blocks with no input are
// omitted; the result is empty when nothing applies.
func Build(in Inputs) string {
	var blocks []string

	if in.Config != nil && in.Config.InjectDateTime {
		blocks = append(blocks, systemBlock(in))
	}
	if in.DisplayName != "" {
		blocks = append(blocks, fmt.Sprintf(
			"[Contexto de usuario]\nEl usuario se llama %s. Dirígete a la persona por su nombre cuando sea natural hacerlo.",
			in.DisplayName))
	}
	if ctx := strings.TrimSpace(in.GeneralContext); ctx != "" {
		blocks = append(blocks, "[Contexto general del usuario]\n"+ctx)
	}
	if len(in.KnowledgeFiles) > 0 {
		blocks = append(blocks, filesBlock(in.KnowledgeFiles))
	}

	return strings.Join(blocks, "\n\n")
}

func systemBlock(in Inputs) string {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	loc, err := time.LoadLocation(in.Config.Timezone)
	if err != nil {
		loc = time.UTC
	}
	now = now.In(loc)

	var b strings.Builder
	b.WriteString("[Contexto del sistema]\n")
	fmt.Fprintf(&b, "Fecha actual: %s, %s\n", weekday(now, in.Config.Locale), longDate(now, in.Config.Locale))
	fmt.Fprintf(&b, "Hora actual: %s (%s)\n", now.Format("15:04"), in.Config.Timezone)
	fmt.Fprintf(&b, "Timestamp Unix: %d", now.Unix())
	if in.Config.InjectLocale {
		fmt.Fprintf(&b, "\nPaís: %s\nLocale: %s", in.Config.Country, in.Config.Locale)
	}
	return b.String()
}

func filesBlock(files []models.KnowledgeFile) string {
	var b strings.Builder
	b.WriteString("[Archivos de la instancia]")
	for _, f := range files {
		fmt.Fprintf(&b, "\n\n--- %s ---\n%s", f.Name, strings.TrimSpace(f.Content))
	}
	return b.String()
}

func weekday(t time.Time, locale string) string {
	if strings.HasPrefix(locale, "es") {
		return spanishWeekdays[int(t.Weekday())]
	}
	return strings.ToLower(t.Weekday().String())
}

func longDate(t time.Time, locale string) string {
	if strings.HasPrefix(locale, "es") {
		return fmt.Sprintf("%d de %s de %d", t.Day(), spanishMonths[int(t.Month())-1], t.Year())
	}
	return t.Format("January 2, 2006")
}
