package models

// TenantSummary is the listing view of a tenant instance.
type TenantSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Tenant is a fully loaded instance: configuration plus the assembled system
// prompt. Immutable once loaded; the prompt hash uniquely identifies the
// on-disk prompt state.
type Tenant struct {
	ID                    string
	Name                  string
	Description           string
	Greeting              string
	InitializationMessage string

	// SystemPrompt is the concatenation of the builder's layered fragments,
	// in fixed order, with section headers.
	SystemPrompt     string
	SystemPromptHash string

	Config *TenantConfig

	// KnowledgeFiles maps file label to pre-loaded content, in stable order.
	KnowledgeFiles []KnowledgeFile

	// Dir is the tenant's directory on disk.
	Dir string
}

// KnowledgeFile is one pre-loaded tenant knowledge file.
type KnowledgeFile struct {
	Name    string
	Content string
}

// TenantConfig is the per-tenant configuration record (config.json).
// Immutable for a given process load.
type TenantConfig struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`

	// APIMode selects the delivery path: "streaming" (default) or "buffered".
	APIMode string `json:"api_mode"`

	// Memory parameters.
	MaxHistory          int `json:"max_history"`           // rolling window, in turns
	MaxChatInteractions int `json:"max_chat_interactions"` // per-chat turn cap
	WarningThreshold    int `json:"warning_threshold"`     // remaining turns that trigger near-limit

	// Tool enablement.
	RetrievalEnabled bool     `json:"retrieval_enabled"`
	WebSearchEnabled bool     `json:"web_search_enabled"`
	FunctionsEnabled bool     `json:"functions_enabled"`
	VectorStoreIDs   []string `json:"vector_store_ids,omitempty"`

	// URLValidationEnabled reconciles cited URLs against retrieval evidence.
	URLValidationEnabled bool `json:"url_validation_enabled"`

	// CitationEnforcement requires explicit source attribution in answers.
	CitationEnforcement bool `json:"citation_enforcement"`

	// AllowedSourceDomains is enumerated in the policy prefix when retrieval
	// or web search is enabled.
	AllowedSourceDomains []string `json:"allowed_source_domains,omitempty"`

	// Web navigation (navigate_web function tool).
	WebNavigation WebNavigationConfig `json:"web_navigation"`

	// Context injection flags.
	InjectDateTime bool   `json:"inject_datetime"`
	InjectLocale   bool   `json:"inject_locale"`
	Timezone       string `json:"timezone"` // IANA name, e.g. "America/Santiago"
	Locale         string `json:"locale"`   // e.g. "es-CL"
	Country        string `json:"country"`

	// Instance knowledge files.
	KnowledgeRoots     []string `json:"knowledge_roots,omitempty"`
	MaxFileChars       int      `json:"max_file_chars"`
	MaxTotalFileChars  int      `json:"max_total_file_chars"`
	InstanceFilesLimit int      `json:"instance_files_limit"`

	// Normative citation annexes.
	CitationsEnabled      bool     `json:"citations_enabled"`
	VerificationDirective string   `json:"verification_directive,omitempty"`
	ModelViewFields       []string `json:"model_view_fields,omitempty"`
	UserViewFields        []string `json:"user_view_fields,omitempty"`

	// Credit policy.
	CreditsEnabled bool `json:"credits_enabled"`
}

// WebNavigationConfig bounds the navigate_web tool.
//
// When Mode is "allowlist" the allow list applies and the deny list is
// ignored; when "denylist" only the deny list applies.
type WebNavigationConfig struct {
	Enabled        bool     `json:"enabled"`
	Mode           string   `json:"mode"` // "allowlist" or "denylist"
	AllowDomains   []string `json:"allow_domains,omitempty"`
	DenyDomains    []string `json:"deny_domains,omitempty"`
	MaxPages       int      `json:"max_pages"`
	MaxDepth       int      `json:"max_depth"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	UserAgent      string   `json:"user_agent,omitempty"`
}

// Normalized returns the config with defaults applied for zero values.
func (c *TenantConfig) Normalized() *TenantConfig {
	out := *c
	if out.APIMode == "" {
		out.APIMode = "streaming"
	}
	if out.MaxHistory <= 0 {
		out.MaxHistory = 10
	}
	if out.MaxChatInteractions <= 0 {
		out.MaxChatInteractions = 50
	}
	if out.WarningThreshold <= 0 {
		out.WarningThreshold = 5
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = 4096
	}
	if out.Timezone == "" {
		out.Timezone = "America/Santiago"
	}
	if out.Locale == "" {
		out.Locale = "es-CL"
	}
	if out.MaxFileChars <= 0 {
		out.MaxFileChars = 12000
	}
	if out.MaxTotalFileChars <= 0 {
		out.MaxTotalFileChars = 48000
	}
	if out.InstanceFilesLimit <= 0 {
		out.InstanceFilesLimit = 10
	}
	if out.WebNavigation.MaxPages <= 0 {
		out.WebNavigation.MaxPages = 3
	}
	if out.WebNavigation.MaxDepth <= 0 {
		out.WebNavigation.MaxDepth = 1
	}
	if out.WebNavigation.TimeoutSeconds <= 0 {
		out.WebNavigation.TimeoutSeconds = 10
	}
	if out.WebNavigation.Mode == "" {
		out.WebNavigation.Mode = "allowlist"
	}
	return &out
}
