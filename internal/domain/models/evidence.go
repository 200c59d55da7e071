package models

// EvidenceChunk is one retrieval result body captured during a turn.
type EvidenceChunk struct {
	ID   string `json:"id"`   // provider id or the chunk's leading header
	Text string `json:"text"` // chunk body, may contain URL markers
}

// URLCorrection records one cited URL rewritten to its complete form.
type URLCorrection struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	NormName  string `json:"norm_name,omitempty"`
	Article   string `json:"article,omitempty"`
}

// URLWarning flags a cited URL not grounded in retrieval evidence.
type URLWarning struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// URLValidationStats summarizes one validator run.
type URLValidationStats struct {
	EvidenceURLs    int `json:"evidence_urls"`
	ArticlesIndexed int `json:"articles_indexed"`
	URLsCorrected   int `json:"urls_corrected"`
	URLsWarned      int `json:"urls_warned"`
}

// URLValidation is the validator's result over one turn's output text.
type URLValidation struct {
	Text        string             `json:"-"`
	Corrections []URLCorrection    `json:"corrections"`
	Warnings    []URLWarning       `json:"warnings"`
	Stats       URLValidationStats `json:"stats"`
}
