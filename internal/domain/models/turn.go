package models

// TurnResult is the completion bundle of one assistant turn, delivered on the
// terminal event and memoized by the response cache.
type TurnResult struct {
	Text              string             `json:"text"`
	Usage             *TurnUsage         `json:"usage,omitempty"`
	InteractionStatus *InteractionStatus `json:"interaction_status,omitempty"`
	Debit             *CreditDebit       `json:"debit,omitempty"`
	Annex             []AnnexEntry       `json:"annex,omitempty"`
	URLValidation     *URLValidation     `json:"url_validation,omitempty"`
	FromCache         bool               `json:"from_cache,omitempty"`
}
