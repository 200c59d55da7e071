package cache

import (
	"strings"
	"testing"
)

func TestNormalizeQuestion(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Qué Dice EL Artículo", "qué dice el artículo"},
		{"trims", "  hola  ", "hola"},
		{"collapses runs", "qué \t dice\n\nla ley", "qué dice la ley"},
		{"already normal", "hola", "hola"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeQuestion(tt.in); got != tt.want {
				t.Errorf("NormalizeQuestion(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestKeyEquivalentQuestionsCollide(t *testing.T) {
	p := KeyParams{Model: "gpt-4o", APIMode: "streaming", RetrievalEnabled: true, UserID: "u1"}
	a := Key(p, "¿Qué dice el CCCH.Art1545?")
	b := Key(p, "  ¿qué   dice el ccch.art1545?  ")
	if a != b {
		t.Errorf("equivalent questions produced different keys: %q vs %q", a, b)
	}
}

func TestKeySeparatesUsersAndConfigs(t *testing.T) {
	base := KeyParams{Model: "gpt-4o", APIMode: "streaming", RetrievalEnabled: true, UserID: "u1"}
	variants := []KeyParams{
		{Model: "gpt-4o-mini", APIMode: "streaming", RetrievalEnabled: true, UserID: "u1"},
		{Model: "gpt-4o", APIMode: "buffered", RetrievalEnabled: true, UserID: "u1"},
		{Model: "gpt-4o", APIMode: "streaming", RetrievalEnabled: false, UserID: "u1"},
		{Model: "gpt-4o", APIMode: "streaming", RetrievalEnabled: true, WebSearchEnabled: true, UserID: "u1"},
		{Model: "gpt-4o", APIMode: "streaming", RetrievalEnabled: true, UserID: "u2"},
	}

	ref := Key(base, "pregunta")
	for i, v := range variants {
		if got := Key(v, "pregunta"); got == ref {
			t.Errorf("variant %d produced the same key as base: %q", i, got)
		}
	}
}

func TestKeyShape(t *testing.T) {
	key := Key(KeyParams{Model: "gpt-4o", APIMode: "streaming", UserID: "user@example.com"}, "hola")
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "resp" {
		t.Fatalf("unexpected key shape: %q", key)
	}
	if len(parts[1]) != 8 || len(parts[2]) != 16 {
		t.Errorf("hash segment lengths = %d, %d; want 8, 16", len(parts[1]), len(parts[2]))
	}
	if parts[3] != "user@example.com" {
		t.Errorf("user segment = %q", parts[3])
	}
}
