package llm

import (
	"reflect"
	"strings"
	"testing"

	"lexgate/internal/domain/models"
)

func TestBuildToolsDeterministic(t *testing.T) {
	cfg := &models.TenantConfig{
		RetrievalEnabled: true,
		WebSearchEnabled: true,
		FunctionsEnabled: true,
		VectorStoreIDs:   []string{"vs_1", "vs_2"},
		WebNavigation:    models.WebNavigationConfig{Enabled: true},
	}

	a := BuildTools(cfg)
	b := BuildTools(cfg)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same config produced different tool sets")
	}

	if len(a) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(a))
	}
	if a[0].Kind != ToolKindFileSearch || !reflect.DeepEqual(a[0].VectorStoreIDs, []string{"vs_1", "vs_2"}) {
		t.Errorf("tool 0 = %+v", a[0])
	}
	if a[1].Kind != ToolKindWebSearch {
		t.Errorf("tool 1 = %+v", a[1])
	}
	if a[2].Kind != ToolKindFunction || a[2].Name != NavigateToolName {
		t.Errorf("tool 2 = %+v", a[2])
	}

	required, _ := a[2].Parameters["required"].([]string)
	if len(required) != 1 || required[0] != "url" {
		t.Errorf("navigate_web schema must require url: %v", a[2].Parameters)
	}
}

func TestBuildToolsFlagCombinations(t *testing.T) {
	tests := []struct {
		name      string
		cfg       models.TenantConfig
		wantKinds []string
	}{
		{"all off", models.TenantConfig{}, nil},
		{"retrieval only", models.TenantConfig{RetrievalEnabled: true}, []string{ToolKindFileSearch}},
		{"web search only", models.TenantConfig{WebSearchEnabled: true}, []string{ToolKindWebSearch}},
		{
			"functions without navigation stays off",
			models.TenantConfig{FunctionsEnabled: true},
			nil,
		},
		{
			"navigation without functions stays off",
			models.TenantConfig{WebNavigation: models.WebNavigationConfig{Enabled: true}},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildTools(&tt.cfg)
			var kinds []string
			for _, tool := range got {
				kinds = append(kinds, tool.Kind)
			}
			if !reflect.DeepEqual(kinds, tt.wantKinds) {
				t.Errorf("kinds = %v, want %v", kinds, tt.wantKinds)
			}
		})
	}
}

func TestBuildToolsAppendsExtraVerbatim(t *testing.T) {
	extra := ToolSpec{Kind: ToolKindFunction, Name: "otra"}
	got := BuildTools(&models.TenantConfig{RetrievalEnabled: true}, extra)
	if len(got) != 2 || got[1].Name != "otra" {
		t.Errorf("extra tool not appended last: %+v", got)
	}
}

func TestPolicyPrefix(t *testing.T) {
	t.Run("off when no source tools", func(t *testing.T) {
		cfg := &models.TenantConfig{CitationEnforcement: true, AllowedSourceDomains: []string{"bcn.cl"}}
		if got := PolicyPrefix(cfg); got != "" {
			t.Errorf("prefix = %q, want empty", got)
		}
	})

	t.Run("domains enumerated", func(t *testing.T) {
		cfg := &models.TenantConfig{
			WebSearchEnabled:     true,
			AllowedSourceDomains: []string{"bcn.cl", "leychile.cl"},
		}
		got := PolicyPrefix(cfg)
		if !strings.Contains(got, "- bcn.cl") || !strings.Contains(got, "- leychile.cl") {
			t.Errorf("domains missing from prefix:\n%s", got)
		}
	})

	t.Run("citation enforcement directive", func(t *testing.T) {
		cfg := &models.TenantConfig{RetrievalEnabled: true, CitationEnforcement: true}
		got := PolicyPrefix(cfg)
		if !strings.Contains(got, "origen") {
			t.Errorf("attribution directive missing:\n%s", got)
		}
	})

	t.Run("empty without domains or enforcement", func(t *testing.T) {
		cfg := &models.TenantConfig{RetrievalEnabled: true}
		if got := PolicyPrefix(cfg); got != "" {
			t.Errorf("prefix = %q, want empty", got)
		}
	})
}
