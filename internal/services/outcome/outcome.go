package outcome

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Op is the batch operation an outcome belongs to.
type Op string

const (
	OpFetch    Op = "fetch"
	OpInterval Op = "interval"
	OpCreate   Op = "create"
	OpAccept   Op = "accept"
	OpCancel   Op = "cancel"
)

// Kind classifies a failed outcome.
type Kind string

const (
	KindNone                Kind = ""
	KindResolution          Kind = "resolution_failure"
	KindRemoteAPI           Kind = "remote_api_error"
	KindTransientNetwork    Kind = "transient_network_error"
	KindMissingCorrelation  Kind = "missing_correlation"
	KindNoAvailableInterval Kind = "no_available_interval"
	KindCancelled           Kind = "cancelled"
	KindTransport           Kind = "transport_error"
)

var (
	ErrResolution          = errors.New("claim not found")
	ErrTransientNetwork    = errors.New("connection dropped")
	ErrMissingCorrelation  = errors.New("no claim_id is specified")
	ErrNoAvailableInterval = errors.New("no available intervals for this client")
	ErrRemoteAPI           = errors.New("remote api error")
	ErrCancelled           = errors.New("batch cancelled")
)

// Outcome is the result of one operation on one input token.
type Outcome struct {
	RunID      string
	Op         Op
	Token      string
	ClaimID    string
	NewClaimID string
	// Source is the claim a reorder replaces.
	Source     string
	Status     string
	Code       string
	Message    string
	Kind       Kind
	OK         bool
	Attempts   int
	At         time.Time
}

// Err returns the failure as an error, nil for a successful outcome.
func (o Outcome) Err() error {
	if o.OK {
		return nil
	}
	if o.Code != "" {
		return errors.Errorf("%s: %s", o.Code, o.Message)
	}
	return errors.New(o.Message)
}

// Failure builds a failed outcome of the given kind.
func Failure(op Op, token string, kind Kind, err error) Outcome {
	return Outcome{Op: op, Token: token, ClaimID: token, Kind: kind, Message: err.Error(), At: time.Now().UTC()}
}

// Formatter renders the success line of an outcome.
type Formatter interface {
	Format(o Outcome) string
}

type FormatterFunc func(o Outcome) string

func (f FormatterFunc) Format(o Outcome) string { return f(o) }

var (
	Created   Formatter = FormatterFunc(func(o Outcome) string { return o.NewClaimID })
	Accepted  Formatter = FormatterFunc(func(o Outcome) string { return fmt.Sprintf("%s – accepted", o.ClaimID) })
	Cancelled Formatter = FormatterFunc(func(o Outcome) string { return fmt.Sprintf("%s - %s", o.ClaimID, o.Status) })
	Search    Formatter = FormatterFunc(func(o Outcome) string { return o.ClaimID })
	Plain               = Search
)

// FormatterFor returns the formatter used for op.
func FormatterFor(op Op) Formatter {
	switch op {
	case OpCreate:
		return Created
	case OpAccept:
		return Accepted
	case OpCancel:
		return Cancelled
	default:
		return Plain
	}
}

// Line renders an outcome the way operators read it: the formatted success
// line, or "<claim> - <message>" on failure.
func Line(o Outcome, f Formatter) string {
	if o.OK {
		return f.Format(o)
	}
	id := o.ClaimID
	if id == "" {
		id = o.Token
	}
	if id == "" {
		return o.Message
	}
	return fmt.Sprintf("%s - %s", id, o.Message)
}
