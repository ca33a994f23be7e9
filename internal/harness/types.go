package harness

// Trace event kinds.
const (
	EventExec     = "exec"
	EventQuery    = "query"
	EventBlock    = "block"
	EventUnblock  = "unblock"
	EventReleased = "released"
	EventPause    = "pause"
)

// Trace event outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeMismatch = "mismatch"
	OutcomeWaiting  = "waiting"
)

// TraceEvent records one statement issued on one session.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Kind      string `json:"kind"`
	Session   int    `json:"session,omitempty"`
	Statement string `json:"statement,omitempty"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	Rows      string `json:"rows,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Pass is true when every step behaved as declared.
	Pass bool `json:"pass"`

	// Trace contains every statement in issue order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
