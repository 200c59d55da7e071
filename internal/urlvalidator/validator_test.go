package urlvalidator

import (
	"strings"
	"testing"

	"lexgate/internal/domain/models"
)

const (
	completeURL   = "https://site/navigate?idnorma=172986&idparte=8717776"
	incompleteURL = "https://site/navigate?idnorma=172986"
)

func evidenceChunk(id, header, url string) models.EvidenceChunk {
	return models.EvidenceChunk{
		ID:   id,
		Text: header + "\n\nTexto del artículo.\n>>>ulr_start<<< " + url + " >>>ulr_end<<<",
	}
}

func TestValidateRepairsIncompleteURL(t *testing.T) {
	evidence := []models.EvidenceChunk{
		evidenceChunk("c1", "## codigo civil - dfl 1 2000 articulo 12", completeURL),
	}
	text := "Según el artículo 12, ver " + incompleteURL + " para el texto oficial."

	result := New(nil).Validate(text, evidence)

	if !strings.Contains(result.Text, completeURL) {
		t.Errorf("expected corrected text to contain %q, got %q", completeURL, result.Text)
	}
	if len(result.Corrections) != 1 {
		t.Fatalf("expected 1 correction, got %d", len(result.Corrections))
	}
	if result.Corrections[0].Original != incompleteURL || result.Corrections[0].Corrected != completeURL {
		t.Errorf("unexpected correction: %+v", result.Corrections[0])
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", result.Warnings)
	}
}

func TestValidateWarnsOnUngroundedURL(t *testing.T) {
	evidence := []models.EvidenceChunk{
		evidenceChunk("c1", "## codigo civil articulo 1545", completeURL),
	}
	invented := "https://site/navigate?idnorma=999999"
	text := "Ver " + invented

	result := New(nil).Validate(text, evidence)

	if len(result.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(result.Warnings))
	}
	if result.Warnings[0].URL != invented {
		t.Errorf("warning for wrong URL: %q", result.Warnings[0].URL)
	}
	if len(result.Corrections) != 0 {
		t.Errorf("expected no corrections, got %v", result.Corrections)
	}
	// Soundness: the invented URL must not be rewritten into something else.
	if !strings.Contains(result.Text, invented) {
		t.Errorf("text altered for ungrounded URL: %q", result.Text)
	}
}

func TestValidateNeverIntroducesURLsNotInEvidence(t *testing.T) {
	evidence := []models.EvidenceChunk{
		evidenceChunk("c1", "## codigo del trabajo articulo 7", completeURL),
	}
	text := "Cita " + incompleteURL
	result := New(nil).Validate(text, evidence)

	evidenceURLs := map[string]bool{completeURL: true, incompleteURL: true}
	for _, u := range ExtractURLs(result.Text) {
		if !evidenceURLs[u] && !strings.Contains(text, u) {
			t.Errorf("validator introduced URL not in evidence: %q", u)
		}
	}
}

func TestExtractURLsAllSyntaxes(t *testing.T) {
	text := ">>>ulr_start<<< https://site/navigate?idnorma=1&idparte=2 >>>ulr_end<<<\n" +
		"**ulr parte norma especifica pdf**: https://site/navigate?idnorma=3&idparte=4\n" +
		"y también https://www.bcn.cl/leychile/navegar?idNorma=5&idParte=6 en línea"

	urls := ExtractURLs(text)
	if len(urls) != 3 {
		t.Fatalf("expected 3 URLs, got %d: %v", len(urls), urls)
	}
}

func TestExtractURLsPathVariants(t *testing.T) {
	for _, path := range []string{"navigate", "navegar", "navegate"} {
		url := "https://site/" + path + "?idnorma=1&idparte=2"
		urls := ExtractURLs("ver " + url + " aquí")
		if len(urls) != 1 || urls[0] != url {
			t.Errorf("path %q: expected [%s], got %v", path, url, urls)
		}
	}
}

func TestValidateLeavesCompleteURLIntact(t *testing.T) {
	// Text cites both the incomplete and the complete form of the same URL.
	// Only the incomplete citation may be rewritten; a substring replace
	// would corrupt the complete one into a doubled idparte parameter.
	evidence := []models.EvidenceChunk{
		evidenceChunk("c1", "## codigo civil articulo 1545", completeURL),
	}
	text := "Ver " + incompleteURL + " y también " + completeURL + "."

	result := New(nil).Validate(text, evidence)

	if strings.Contains(result.Text, "idparte=8717776&idparte=8717776") {
		t.Fatalf("complete URL corrupted: %q", result.Text)
	}
	if len(result.Corrections) != 1 {
		t.Fatalf("expected 1 correction, got %d", len(result.Corrections))
	}
	if got := strings.Count(result.Text, completeURL); got != 2 {
		t.Errorf("expected complete URL twice in output, got %d: %q", got, result.Text)
	}
	if !strings.HasSuffix(result.Text, ".") {
		t.Errorf("trailing punctuation lost: %q", result.Text)
	}
}

func TestExtractURLsDeduplicates(t *testing.T) {
	text := completeURL + " y de nuevo " + completeURL
	urls := ExtractURLs(text)
	if len(urls) != 1 {
		t.Errorf("expected deduplicated single URL, got %v", urls)
	}
}

func TestIsComplete(t *testing.T) {
	if !IsComplete(completeURL) {
		t.Errorf("complete URL reported incomplete")
	}
	if IsComplete(incompleteURL) {
		t.Errorf("incomplete URL reported complete")
	}
}

func TestPrefersCompleteEvidenceURL(t *testing.T) {
	// Same article indexed twice: incomplete first, complete second.
	evidence := []models.EvidenceChunk{
		evidenceChunk("c1", "## ley 20190 articulo 2", incompleteURL),
		evidenceChunk("c2", "## ley 20190 articulo 2", completeURL),
	}
	text := "Ver " + incompleteURL

	result := New(nil).Validate(text, evidence)
	if len(result.Corrections) != 1 {
		t.Fatalf("expected 1 correction, got %d", len(result.Corrections))
	}
	if result.Corrections[0].Corrected != completeURL {
		t.Errorf("expected complete URL preferred, got %q", result.Corrections[0].Corrected)
	}
}
