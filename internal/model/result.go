package model

import "fmt"

// Status classifies the result of an engine operation.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusRejected  Status = "rejected"
	StatusDeflected Status = "deflected"
	StatusFailed    Status = "failed"
)

// CodeInternal is the opaque code surfaced for rolled-back transactions.
const CodeInternal = "internal_failure"

// Result is the structured outcome every engine operation returns. Only
// unexpected faults travel as errors; they are converted to StatusFailed
// at the transaction boundary.
type Result struct {
	Status  Status  `json:"status"`
	Code    string  `json:"code,omitempty"`
	Message string  `json:"message"`
	Report  *Report `json:"report,omitempty"`
}

// OK reports whether the operation committed.
func (r Result) OK() bool {
	return r.Status == StatusSuccess || r.Status == StatusDeflected
}

// Succeeded builds a success result.
func Succeeded(msg string, report *Report) Result {
	return Result{Status: StatusSuccess, Message: msg, Report: report}
}

// Rejected builds a validation or insufficient-resource rejection.
func Rejected(code, msg string) Result {
	return Result{Status: StatusRejected, Code: code, Message: msg}
}

// Failed is the generic transactional failure.
func Failed() Result {
	return Result{Status: StatusFailed, Code: CodeInternal, Message: "internal failure"}
}

// Rejection is returned from inside a transaction to abort it with a
// user-facing reason instead of a fault.
type Rejection struct {
	Code    string
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected: %s: %s", r.Code, r.Message)
}

// Reject creates a Rejection error.
func Reject(code, msg string) error {
	return &Rejection{Code: code, Message: msg}
}

// Result converts the rejection into a Result.
func (r *Rejection) Result() Result {
	return Rejected(r.Code, r.Message)
}
