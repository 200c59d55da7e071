// Package llm adapts the gateway to the model provider: one streaming call
// per turn, with tool wiring derived from tenant configuration and local
// execution of synchronous function tools.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"lexgate/internal/domain/models"
)

// Tool kinds wired from tenant flags.
const (
	ToolKindFileSearch = "file_search"
	ToolKindWebSearch  = "web_search"
	ToolKindFunction   = "function"

	// NavigateToolName is the single custom function tool.
	NavigateToolName = "navigate_web"
)

// ToolSpec is a provider-neutral tool declaration.
type ToolSpec struct {
	Kind           string
	VectorStoreIDs []string

	// Function tool fields.
	Name        string
	Description string
	Parameters  map[string]any
}

// StreamRequest is one turn's worth of provider input.
type StreamRequest struct {
	Model        string
	Instructions string
	Input        string
	Temperature  float64
	MaxTokens    int
	Tools        []ToolSpec

	// IncludeRetrievalResults asks the provider to surface retrieval result
	// bodies so the URL validator has evidence to work with.
	IncludeRetrievalResults bool

	// ValidateURLs runs the URL validator over the final text when evidence
	// was captured.
	ValidateURLs bool

	// Executor serves synchronous function tool calls for this turn. May be
	// nil when no function tools are wired.
	Executor ToolExecutor
}

// Callbacks receive incremental output while the stream runs. Either may be
// nil.
type Callbacks struct {
	OnDelta  func(delta string)
	OnStatus func(message string)
}

// StreamResult is the completion summary after the stream closes normally.
type StreamResult struct {
	Text          string
	Usage         *models.TurnUsage
	Evidence      []models.EvidenceChunk
	URLValidation *models.URLValidation
}

// Provider issues one streaming turn. Implementations block until the stream
// terminates and never touch persistent state.
type Provider interface {
	Stream(ctx context.Context, req StreamRequest, cb Callbacks) (*StreamResult, error)
}

// ToolExecutor runs a synchronous function tool call locally. The returned
// string is handed back to the provider as the tool output; failures are
// encoded as an error object, not surfaced as Go errors.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, arguments json.RawMessage) string
}

// BuildTools derives the tool set from tenant flags, in fixed order:
// retrieval, web search, navigate_web. Extra entries are appended verbatim
// after the derived set.
func BuildTools(cfg *models.TenantConfig, extra ...ToolSpec) []ToolSpec {
	var tools []ToolSpec
	if cfg.RetrievalEnabled {
		tools = append(tools, ToolSpec{
			Kind:           ToolKindFileSearch,
			VectorStoreIDs: cfg.VectorStoreIDs,
		})
	}
	if cfg.WebSearchEnabled {
		tools = append(tools, ToolSpec{Kind: ToolKindWebSearch})
	}
	if cfg.FunctionsEnabled && cfg.WebNavigation.Enabled {
		tools = append(tools, ToolSpec{
			Kind:        ToolKindFunction,
			Name:        NavigateToolName,
			Description: "Navega una URL permitida y devuelve el contenido textual de la página.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "URL absoluta a visitar",
					},
				},
				"required":             []string{"url"},
				"additionalProperties": false,
			},
		})
	}
	return append(tools, extra...)
}

// PolicyPrefix builds the source-policy directive prepended to the input when
// retrieval or web search is on. Empty when neither applies.
func PolicyPrefix(cfg *models.TenantConfig) string {
	if !cfg.RetrievalEnabled && !cfg.WebSearchEnabled {
		return ""
	}
	prefix := "[Política de fuentes]"
	if len(cfg.AllowedSourceDomains) > 0 {
		prefix += "\nUtiliza únicamente información de los siguientes dominios:"
		for _, d := range cfg.AllowedSourceDomains {
			prefix += "\n- " + d
		}
	}
	if cfg.CitationEnforcement {
		prefix += "\nCada afirmación basada en una fuente debe indicar explícitamente su origen."
	}
	if prefix == "[Política de fuentes]" {
		return ""
	}
	return prefix
}

// functionCall is one pending synchronous tool call captured from the stream.
type functionCall struct {
	CallID    string
	Name      string
	Arguments string
}

func (c functionCall) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, c.Arguments)
}
