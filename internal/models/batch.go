package models

// BatchOutcomeStatus classifies the result of one bulk candidate.
type BatchOutcomeStatus string

const (
	BatchOutcomeCreated BatchOutcomeStatus = "created"
	BatchOutcomeSkipped BatchOutcomeStatus = "skipped"
	BatchOutcomeInvalid BatchOutcomeStatus = "invalid"
	BatchOutcomeFailed  BatchOutcomeStatus = "failed"
)

// BatchOutcome reports the result for a single bulk candidate. Outcomes are
// returned in input order, one per candidate.
type BatchOutcome struct {
	Index      int                `json:"index"`
	Outcome    BatchOutcomeStatus `json:"outcome"`
	EntryID    string             `json:"entry_id,omitempty"`
	ExistingID string             `json:"existing_id,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// BatchSummary aggregates outcome counts for a bulk call.
type BatchSummary struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Invalid   int `json:"invalid"`
	Failed    int `json:"failed"`
}
