package model

import (
	"github.com/m-mizutani/goerr/v2"
)

// Scope is the identifier tuple that partitions visibility of records.
// UserID and AgentID are always required. RunID and Project narrow
// visibility when set.
type Scope struct {
	UserID  string `json:"user_id" yaml:"user_id"`
	AgentID string `json:"agent_id" yaml:"agent_id"`
	RunID   string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Project string `json:"project,omitempty" yaml:"project,omitempty"`
}

// Validate checks that the required identifiers are present
func (s Scope) Validate() error {
	if s.UserID == "" {
		return goerr.Wrap(ErrInvalidInput, "user_id is required")
	}
	if s.AgentID == "" {
		return goerr.Wrap(ErrInvalidInput, "agent_id is required")
	}
	return nil
}

// CanSee reports whether a caller with this scope may observe the record.
// This is a hard isolation boundary: every read and write path of the
// engine goes through it before touching record data.
//
// Rules:
//   - user_id and agent_id must match exactly
//   - a caller run_id admits only records with the same run_id or none
//   - a caller project requires an exact project match
//   - working records are visible only from their originating run_id,
//     even when the caller omits run_id
func (s Scope) CanSee(rec *Record) bool {
	if rec == nil {
		return false
	}
	if s.UserID != rec.Scope.UserID || s.AgentID != rec.Scope.AgentID {
		return false
	}
	if s.RunID != "" && rec.Scope.RunID != "" && rec.Scope.RunID != s.RunID {
		return false
	}
	if s.Project != "" && rec.Scope.Project != s.Project {
		return false
	}
	if rec.Category == CategoryWorking && rec.Scope.RunID != s.RunID {
		return false
	}
	return true
}
