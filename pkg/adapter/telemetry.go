package adapter

import (
	"context"
	"time"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// Event is the structured telemetry record emitted once per engine
// operation. The engine does not format or transport events, it only
// hands them to the injected Emitter.
type Event struct {
	Operation string
	Scope     model.Scope
	RecordID  model.RecordID
	NumHits   int
	Latency   time.Duration
	Outcome   string
}

// Outcome values of a telemetry event
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Emitter receives one Event per engine operation
type Emitter func(ctx context.Context, ev *Event)

// LogEmitter emits events to the logger carried by the context
func LogEmitter(ctx context.Context, ev *Event) {
	logging.From(ctx).Info("memory operation",
		"operation", ev.Operation,
		"user_id", ev.Scope.UserID,
		"agent_id", ev.Scope.AgentID,
		"run_id", ev.Scope.RunID,
		"project", ev.Scope.Project,
		"record_id", ev.RecordID,
		"num_hits", ev.NumHits,
		"latency", ev.Latency,
		"outcome", ev.Outcome,
	)
}
