package models

// TurnUsage is the token accounting for one completed turn.
type TurnUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// CreditDebit records the outcome of the debit step for one turn.
type CreditDebit struct {
	Credits   int     `json:"credits"`
	CostUSD   float64 `json:"cost_usd"`
	FromCache bool    `json:"from_cache,omitempty"`
	// Flagged marks a turn that was persisted but could not be debited.
	Flagged bool `json:"flagged,omitempty"`
}

// InteractionStatus is the per-chat turn accounting exposed on terminal
// events.
type InteractionStatus struct {
	Current      int  `json:"current"`
	Max          int  `json:"max"`
	Remaining    int  `json:"remaining"`
	LimitReached bool `json:"isLimitReached"`
	NearLimit    bool `json:"isNearLimit"`
}

// User is the slice of the user record the pipeline needs: identity, credit
// balance and the free-text general context.
type User struct {
	ID              string
	DisplayName     string
	CreditBalance   int
	CreditsAssigned int
	GeneralContext  string // free text, capped at 2000 chars upstream
}
