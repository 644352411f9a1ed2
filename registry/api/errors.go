package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.dedis.ch/ballotbox/ballot"
	"golang.org/x/xerrors"
)

// Error is used by handler functions to wrap errors, assigning a unique error
// code and the HTTP status of the response.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

// MarshalJSON returns a JSON containing Err.Error() and Code. Field HTTPstatus
// is ignored.
//
// Example output: {"error":"not found","code":40400}
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			Err  string `json:"error"`
			Code int    `json:"code"`
		}{
			Err:  e.Err.Error(),
			Code: e.Code,
		})
}

// Error implements error.
func (e Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// Withf returns a copy of the error with the formatted string appended.
func (e Error) Withf(format string, args ...interface{}) Error {
	return Error{
		Err:        xerrors.Errorf("%w: %s", e.Err, fmt.Sprintf(format, args...)),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// WithErr returns a copy of the error with err.Error() appended.
func (e Error) WithErr(err error) Error {
	return Error{
		Err:        xerrors.Errorf("%w: %v", e.Err, err),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// The custom error codes. The first three digits are the HTTP status.
var (
	ErrMalformedBody = Error{
		Err:        xerrors.New("malformed JSON body"),
		Code:       40000,
		HTTPstatus: http.StatusBadRequest,
	}
	ErrInvalidParams = Error{
		Err:        xerrors.New("invalid ballot parameters"),
		Code:       40001,
		HTTPstatus: http.StatusBadRequest,
	}
	ErrInvalidSelection = Error{
		Err:        xerrors.New("invalid selection"),
		Code:       40002,
		HTTPstatus: http.StatusBadRequest,
	}
	ErrInvalidProof = Error{
		Err:        xerrors.New("invalid reveal proof"),
		Code:       40003,
		HTTPstatus: http.StatusBadRequest,
	}
	ErrUnauthorized = Error{
		Err:        xerrors.New("caller is not allowed"),
		Code:       40300,
		HTTPstatus: http.StatusForbidden,
	}
	ErrNotEligible = Error{
		Err:        xerrors.New("voter is not eligible"),
		Code:       40301,
		HTTPstatus: http.StatusForbidden,
	}
	ErrNotFound = Error{
		Err:        xerrors.New("ballot not found"),
		Code:       40400,
		HTTPstatus: http.StatusNotFound,
	}
	ErrConflict = Error{
		Err:        xerrors.New("conflicting state"),
		Code:       40900,
		HTTPstatus: http.StatusConflict,
	}
	ErrMarshalingServerJSONFailed = Error{
		Err:        xerrors.New("marshaling (server-side) JSON failed"),
		Code:       50000,
		HTTPstatus: http.StatusInternalServerError,
	}
	ErrGenericInternalServerError = Error{
		Err:        xerrors.New("internal server error"),
		Code:       50001,
		HTTPstatus: http.StatusInternalServerError,
	}
)

var errorTable = []struct {
	err error
	api Error
}{
	{ballot.ErrNotFound, ErrNotFound},
	{ballot.ErrUnauthorized, ErrUnauthorized},
	{ballot.ErrNotEligible, ErrNotEligible},
	{ballot.ErrInvalidSelection, ErrInvalidSelection},
	{ballot.ErrInvalidProof, ErrInvalidProof},

	{ballot.ErrEmptyTitle, ErrInvalidParams},
	{ballot.ErrTitleTooLong, ErrInvalidParams},
	{ballot.ErrChoiceCount, ErrInvalidParams},
	{ballot.ErrEmptyChoice, ErrInvalidParams},
	{ballot.ErrInvalidWindow, ErrInvalidParams},
	{ballot.ErrInvalidThreshold, ErrInvalidParams},
	{ballot.ErrInvalidMode, ErrInvalidParams},

	{ballot.ErrDuplicateTitle, ErrConflict},
	{ballot.ErrCapacityExceeded, ErrConflict},
	{ballot.ErrWindowClosed, ErrConflict},
	{ballot.ErrAlreadyVoted, ErrConflict},
	{ballot.ErrNotClosed, ErrConflict},
	{ballot.ErrAlreadyRequested, ErrConflict},
	{ballot.ErrAlreadyResolved, ErrConflict},
	{ballot.ErrNotRequested, ErrConflict},
	{ballot.ErrNotPending, ErrConflict},
}

// errorFrom returns the API error matching an error of the registry. The
// message of the original error is kept.
func errorFrom(err error) Error {
	for _, entry := range errorTable {
		if xerrors.Is(err, entry.err) {
			return Error{
				Err:        err,
				Code:       entry.api.Code,
				HTTPstatus: entry.api.HTTPstatus,
			}
		}
	}

	return ErrGenericInternalServerError.WithErr(err)
}
