package instance

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lexgate/internal/domain"
)

func writeTenant(t *testing.T, root, id string, builder string, extra map[string]string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(filepath.Join(dir, "prompts"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"config.json":  `{"model":"gpt-4o","max_history":5}`,
		"builder.json": builder,
	}
	for name, content := range extra {
		files[name] = content
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewRegistry(root, logger), root
}

const minimalBuilder = `{
	"name": "Asistente Tributario",
	"initial_instructions": "Eres un asistente legal.",
	"base_config": "Responde en español.",
	"functional_config": "Cita siempre las fuentes."
}`

func TestListSortedAndFiltered(t *testing.T) {
	registry, root := newTestRegistry(t)
	writeTenant(t, root, "tributario", minimalBuilder, nil)
	writeTenant(t, root, "civil", minimalBuilder, nil)
	// A directory without a builder record does not qualify.
	if err := os.MkdirAll(filepath.Join(root, "incompleto"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "incompleto", "config.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	summaries, err := registry.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(summaries))
	}
	if summaries[0].ID != "civil" || summaries[1].ID != "tributario" {
		t.Errorf("unexpected order: %s, %s", summaries[0].ID, summaries[1].ID)
	}
	if summaries[1].Name != "Asistente Tributario" {
		t.Errorf("name = %q", summaries[1].Name)
	}
}

func TestLoadAssemblesPromptInOrder(t *testing.T) {
	registry, root := newTestRegistry(t)
	builder := `{
		"name": "Demo",
		"initial_instructions": "file:./prompts/init.md",
		"base_config": "base inline",
		"functional_config": "funcional inline",
		"citation_config": "citas inline"
	}`
	writeTenant(t, root, "demo", builder, map[string]string{
		"prompts/init.md": "instrucciones desde archivo",
	})

	tenant, err := registry.Load("demo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	wantOrder := []string{
		"=== initial_instructions ===",
		"instrucciones desde archivo",
		"=== base_config ===",
		"=== functional_config ===",
		"=== citation_config ===",
	}
	pos := -1
	for _, marker := range wantOrder {
		idx := strings.Index(tenant.SystemPrompt, marker)
		if idx < 0 {
			t.Fatalf("prompt missing %q:\n%s", marker, tenant.SystemPrompt)
		}
		if idx < pos {
			t.Errorf("section %q out of order", marker)
		}
		pos = idx
	}
	if len(tenant.SystemPromptHash) != 64 {
		t.Errorf("hash length = %d", len(tenant.SystemPromptHash))
	}
}

func TestLoadDeterministicHash(t *testing.T) {
	registry, root := newTestRegistry(t)
	writeTenant(t, root, "demo", minimalBuilder, nil)

	a, err := registry.Load("demo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	b, err := registry.Load("demo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if a.SystemPromptHash != b.SystemPromptHash {
		t.Error("same on-disk state produced different prompt hashes")
	}
}

func TestLoadUnknownID(t *testing.T) {
	registry, _ := newTestRegistry(t)
	_, err := registry.Load("no-existe")
	if domain.CodeOf(err) != domain.CodeTenantNotFound {
		t.Errorf("code = %s, want %s", domain.CodeOf(err), domain.CodeTenantNotFound)
	}
}

func TestLoadMissingFragmentFile(t *testing.T) {
	registry, root := newTestRegistry(t)
	builder := `{
		"initial_instructions": "file:./prompts/no-existe.md",
		"base_config": "b",
		"functional_config": "f"
	}`
	writeTenant(t, root, "roto", builder, nil)

	_, err := registry.Load("roto")
	if domain.CodeOf(err) != domain.CodeTenantInvalid {
		t.Errorf("code = %s, want %s", domain.CodeOf(err), domain.CodeTenantInvalid)
	}
}

func TestLoadRejectsForeignFragmentPath(t *testing.T) {
	registry, root := newTestRegistry(t)
	builder := `{
		"initial_instructions": "file:/etc/passwd",
		"base_config": "b",
		"functional_config": "f"
	}`
	writeTenant(t, root, "fuera", builder, nil)

	_, err := registry.Load("fuera")
	var gerr *domain.GatewayError
	if !errors.As(err, &gerr) || gerr.Code != domain.CodeConfiguration {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestGreetingFilesWinOverBuilderFields(t *testing.T) {
	registry, root := newTestRegistry(t)
	builder := `{
		"initial_instructions": "i",
		"base_config": "b",
		"functional_config": "f",
		"initial_greeting": "saludo del builder",
		"initialization_message": "init del builder"
	}`
	writeTenant(t, root, "demo", builder, map[string]string{
		"initial_greeting.txt": "saludo del archivo\n",
	})

	tenant, err := registry.Load("demo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tenant.Greeting != "saludo del archivo" {
		t.Errorf("greeting = %q", tenant.Greeting)
	}
	if tenant.InitializationMessage != "init del builder" {
		t.Errorf("init message = %q", tenant.InitializationMessage)
	}
}

func TestKnowledgeFilesCapsAndOrder(t *testing.T) {
	registry, root := newTestRegistry(t)
	writeTenant(t, root, "demo", minimalBuilder, map[string]string{
		"config.json":    `{"model":"gpt-4o","max_file_chars":10,"max_total_file_chars":15}`,
		"files/b.txt":    strings.Repeat("b", 40),
		"files/a.txt":    strings.Repeat("a", 40),
		"files/skip.pdf": "binario",
	})

	tenant, err := registry.Load("demo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(tenant.KnowledgeFiles) != 2 {
		t.Fatalf("expected 2 knowledge files, got %d", len(tenant.KnowledgeFiles))
	}
	if tenant.KnowledgeFiles[0].Name != "a.txt" || tenant.KnowledgeFiles[1].Name != "b.txt" {
		t.Errorf("unexpected order: %s, %s", tenant.KnowledgeFiles[0].Name, tenant.KnowledgeFiles[1].Name)
	}
	if got := len(tenant.KnowledgeFiles[0].Content); got != 10 {
		t.Errorf("per-file cap not applied: %d chars", got)
	}
	if got := len(tenant.KnowledgeFiles[1].Content); got != 5 {
		t.Errorf("total cap not applied: second file has %d chars", got)
	}
}

func TestValidate(t *testing.T) {
	registry, root := newTestRegistry(t)
	writeTenant(t, root, "demo", minimalBuilder, nil)

	if !registry.Validate("demo") {
		t.Error("Validate(demo) = false")
	}
	if registry.Validate("no-existe") {
		t.Error("Validate(no-existe) = true")
	}
	if registry.Validate("../demo") {
		t.Error("Validate must reject path traversal")
	}
}
