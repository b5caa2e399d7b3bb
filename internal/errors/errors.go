// Package errors defines the error taxonomy for the sync layer and the
// mapping from ledger program rejection codes to user-facing messages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrNotFound reports that the remote store holds no record at an address.
// Absence is a valid empty state, not a failure: callers translate it into
// an empty snapshot rather than surfacing an error.
var ErrNotFound = stderrors.New("record not found")

// InputError reports a precondition violation detected before any remote
// call is attempted (missing identity, malformed address, oversized batch).
type InputError struct {
	Reason string
}

// Error implements the error interface.
func (e *InputError) Error() string { return "invalid input: " + e.Reason }

// NewInput creates an InputError with a formatted reason.
func NewInput(format string, args ...any) *InputError {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

// RemoteError reports a network or node failure while talking to the
// ledger, including timeouts. The last known good snapshot is retained by
// the caller; there is no implicit retry.
type RemoteError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *RemoteError) Unwrap() error { return e.Err }

// NewRemote wraps err as a RemoteError for the named remote operation.
func NewRemote(op string, err error) *RemoteError {
	return &RemoteError{Op: op, Err: err}
}

// DecodeError reports a payload that was present but did not match the
// expected schema. It is always scoped to a single record and never aborts
// a batch.
type DecodeError struct {
	Record string
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s record: %v", e.Record, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecode wraps err as a DecodeError for the named record kind.
func NewDecode(record string, err error) *DecodeError {
	return &DecodeError{Record: record, Err: err}
}

// RejectCode is a rejection code returned by the ledger program for a
// submitted instruction.
type RejectCode int

// Rejection codes defined by the solagram program.
const (
	RejectHandleTooLong  RejectCode = 6000
	RejectContentTooLong RejectCode = 6001
	RejectDuplicate      RejectCode = 6002
	RejectUnauthorized   RejectCode = 6003
	RejectAlreadyFollows RejectCode = 6004
	RejectNotFollowing   RejectCode = 6005
	RejectSelfFollow     RejectCode = 6006
)

// genericRejectMessage is the fallback for codes missing from the table.
const genericRejectMessage = "operation failed"

// rejectMessages maps program rejection codes to user-facing messages.
// Codes not present here fall back to genericRejectMessage.
var rejectMessages = map[RejectCode]string{
	RejectHandleTooLong:  "handle exceeds the maximum length",
	RejectContentTooLong: "content exceeds the maximum length",
	RejectDuplicate:      "record already exists at the derived address",
	RejectUnauthorized:   "signer is not authorized for this record",
	RejectAlreadyFollows: "follow edge already exists",
	RejectNotFollowing:   "follow edge does not exist",
	RejectSelfFollow:     "cannot follow yourself",
}

// RejectMessage returns the user-facing message for a program rejection
// code, or the generic fallback for unmapped codes.
func RejectMessage(code RejectCode) string {
	if msg, ok := rejectMessages[code]; ok {
		return msg
	}
	return genericRejectMessage
}

// WriteRejected reports that the ledger program rejected a submitted
// instruction. Prior local state is left untouched by the caller.
type WriteRejected struct {
	Code RejectCode
}

// Error implements the error interface.
func (e *WriteRejected) Error() string {
	return fmt.Sprintf("%s (code %d)", RejectMessage(e.Code), e.Code)
}

// NewRejected creates a WriteRejected for a program code.
func NewRejected(code RejectCode) *WriteRejected {
	return &WriteRejected{Code: code}
}

// IsNotFound reports whether err indicates record absence.
func IsNotFound(err error) bool { return stderrors.Is(err, ErrNotFound) }

// IsInput reports whether err is an input precondition violation.
func IsInput(err error) bool {
	var ie *InputError
	return stderrors.As(err, &ie)
}

// IsRemote reports whether err is a remote transport or node failure.
func IsRemote(err error) bool {
	var re *RemoteError
	return stderrors.As(err, &re)
}

// IsDecode reports whether err is a per-record decode failure.
func IsDecode(err error) bool {
	var de *DecodeError
	return stderrors.As(err, &de)
}

// RejectedCode extracts the program rejection code from err, if any.
func RejectedCode(err error) (RejectCode, bool) {
	var wr *WriteRejected
	if stderrors.As(err, &wr) {
		return wr.Code, true
	}
	return 0, false
}
