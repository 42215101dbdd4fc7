package messages

import "time"

const ClaimOutcomesTopic = "claim.outcomes"

// ClaimOutcome is published once per operation on one input token.
type ClaimOutcome struct {
	RunID      string `json:"run_id,omitempty"`
	Op         string `json:"op"`
	Token      string `json:"token"`
	ClaimID    string `json:"claim_id,omitempty"`
	NewClaimID string `json:"new_claim_id,omitempty"`

	// Source is the claim a reorder replaced; set on create and accept outcomes.
	Source string `json:"source,omitempty"`

	Status  string `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
	OK      bool   `json:"ok"`

	Attempts int       `json:"attempts,omitempty"`
	At       time.Time `json:"at"`
}
