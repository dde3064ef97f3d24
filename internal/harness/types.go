package harness

// Trace entry kinds.
const (
	KindEvent        = "event"
	KindExecution    = "execution"
	KindNotification = "notification"
)

// TraceEvent is one observable effect, in the order it happened.
// Timestamps are left out so traces compare byte for byte.
type TraceEvent struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`

	// Event fields.
	Type      string `json:"type,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Derived   bool   `json:"derived,omitempty"`

	// Execution fields.
	Rule   string `json:"rule,omitempty"`
	Event  string `json:"event,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`

	// Notification fields.
	To          string `json:"to,omitempty"`
	MailSubject string `json:"mail_subject,omitempty"`
	Tag         string `json:"tag,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists events, ledger rows and notifications in write order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed assertion.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
