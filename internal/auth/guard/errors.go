package guard

import "errors"

// Externally visible rejection kinds. Callers branch on these with errors.Is;
// the finer-grained Reason is only for logs and metrics.
var (
	ErrMissingCredential = errors.New("guard: missing credential")
	ErrInvalidOrExpired  = errors.New("guard: invalid or expired credential")
	ErrInternal          = errors.New("guard: internal fault")
)

// Reason tells forged, stale and replayed tokens apart for diagnostics.
type Reason string

const (
	ReasonMissing  Reason = "missing"
	ReasonInvalid  Reason = "invalid"
	ReasonExpired  Reason = "expired"
	ReasonReplayed Reason = "replayed"
	ReasonInternal Reason = "internal"
)

// RejectionError is returned by Admit. It unwraps to one of the sentinel
// errors above.
type RejectionError struct {
	Reason Reason
	Err    error
}

func (e *RejectionError) Error() string {
	return e.Err.Error() + " (" + string(e.Reason) + ")"
}

func (e *RejectionError) Unwrap() error { return e.Err }

func reject(reason Reason, err error) error {
	return &RejectionError{Reason: reason, Err: err}
}

// ReasonOf extracts the diagnostic reason from an Admit error. It returns ""
// for nil or foreign errors.
func ReasonOf(err error) Reason {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
