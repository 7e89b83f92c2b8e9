package model

import "time"

// Transition is one journal entry of a workflow session.
type Transition struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Brief is a finished project brief as stored in the archive.
type Brief struct {
	SessionID   string             `json:"sessionId"`
	Name        string             `json:"name"`
	Markdown    string             `json:"markdown"`
	Requirement Requirement        `json:"requirement"`
	Plan        ProjectPlan        `json:"plan"`
	Evaluation  *ProjectEvaluation `json:"evaluation,omitempty"`
	Cycles      int                `json:"cycles"`
	Unresolved  int                `json:"unresolved"`
	CreatedAt   time.Time          `json:"createdAt"`
}
