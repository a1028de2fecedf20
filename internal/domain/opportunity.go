package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is a tender or listing open for bidding on a portal.
// It only lives for the duration of one scan.
type Opportunity struct {
	ID      string   `json:"id"`
	URL     string   `json:"url"`
	Title   string   `json:"title,omitempty"`
	RawText string   `json:"rawText"`
	Items   []string `json:"items,omitempty"` // requested line items, when the portal lists them
	Portal  string   `json:"portal"`
}

// AttachmentKind identifies which file input an attachment goes to
type AttachmentKind string

const (
	AttachmentImage     AttachmentKind = "image"
	AttachmentDatasheet AttachmentKind = "datasheet"
)

// Attachment is a local file uploaded alongside an offer
type Attachment struct {
	Kind AttachmentKind `json:"kind"`
	Path string         `json:"path"`
}

// Offer is one product offered against one opportunity
type Offer struct {
	Opportunity Opportunity  `json:"opportunity"`
	Product     Product      `json:"product"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SubmissionRecord is one row of the append-only submission log
type SubmissionRecord struct {
	Timestamp     time.Time       `json:"timestamp"`
	ProductCode   string          `json:"productCode"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StatusLabel   string          `json:"statusLabel"` // e.g. "Postulado en Wherex"
	Portal        string          `json:"portal,omitempty"`
	OpportunityID string          `json:"opportunityId,omitempty"`
	RunID         string          `json:"runId,omitempty"`
}

// Credentials for a portal account
type Credentials struct {
	Username string `json:"-"`
	Password string `json:"-"`
}

// RunState is a state of the bidding session state machine
type RunState string

const (
	StateIdle          RunState = "idle"
	StateAuthenticated RunState = "authenticated"
	StateScanning      RunState = "scanning"
	StateSubmitting    RunState = "submitting"
	StateSkipping      RunState = "skipping"
	StateDone          RunState = "done"
	StateAborted       RunState = "aborted"
)

// ItemFailure describes a non-fatal failure for one opportunity/product pair
type ItemFailure struct {
	OpportunityID string `json:"opportunityId"`
	ProductCode   string `json:"productCode,omitempty"`
	Error         string `json:"error"`
}

// RunReport summarizes one bidding session
type RunReport struct {
	RunID              string        `json:"runId"`
	Portal             string        `json:"portal"`
	State              RunState      `json:"state"`
	Transitions        []RunState    `json:"transitions"`
	StartedAt          time.Time     `json:"startedAt"`
	FinishedAt         time.Time     `json:"finishedAt"`
	Scanned            int           `json:"scanned"`
	Matched            int           `json:"matched"`
	Skipped            int           `json:"skipped"`
	Submitted          int           `json:"submitted"`
	Duplicates         int           `json:"duplicates"`
	AttachmentWarnings int           `json:"attachmentWarnings"`
	Failures           []ItemFailure `json:"failures,omitempty"`
	LogFailures        []ItemFailure `json:"logFailures,omitempty"`
	Err                string        `json:"error,omitempty"`
}

// Transition moves the report to a new state and records it
func (r *RunReport) Transition(state RunState) {
	r.State = state
	r.Transitions = append(r.Transitions, state)
}

// Aborted reports whether the run ended in a fatal failure
func (r *RunReport) Aborted() bool {
	return r.State == StateAborted
}
