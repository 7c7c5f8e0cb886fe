package harness

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when no step failed unexpectedly and every expectation
	// held.
	Pass bool `json:"pass"`

	// Trace is the deterministic, line-oriented record of the run used for
	// golden comparison.
	Trace []string `json:"trace"`

	// Errors holds one message per failed step or expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []string{}, Errors: []string{}}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends one trace line.
func (r *Result) AddTrace(line string) {
	r.Trace = append(r.Trace, line)
}
