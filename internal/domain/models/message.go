package models

import "time"

// Message roles stored in the per-chat log.
const (
	RoleUser        = "user"
	RoleAssistant   = "assistant"
	RoleSystemAnnex = "system-annex"
	RoleSystemInit  = "system-init"
)

// Message is one entry in a chat's append-only log.
type Message struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Usage     *TurnUsage        `json:"usage,omitempty"`
	Annex     []AnnexEntry      `json:"annex,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// AnnexEntry is the user-view rendering of one resolved normative citation.
type AnnexEntry struct {
	Key      string `json:"key"`
	Norm     string `json:"norm,omitempty"`
	Article  string `json:"article,omitempty"`
	URL      string `json:"url,omitempty"`
	Text     string `json:"text,omitempty"`      // truncated to 500 chars
	TextFull string `json:"text_full,omitempty"` // literal article text
}

// Attachment is a per-turn uploaded file already converted to text by the
// upstream document converter.
type Attachment struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Content  string `json:"content"`
}

// TextLike reports whether the attachment can be forwarded to the retrieval
// store and previewed inline.
func (a *Attachment) TextLike() bool {
	switch a.MIMEType {
	case "text/plain", "text/markdown", "text/csv", "application/json":
		return true
	}
	return false
}
