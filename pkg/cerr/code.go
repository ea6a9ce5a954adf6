package cerr

import (
	"net/http"

	"connectrpc.com/connect"
)

// Code is the error classification returned to callers. The numbering
// follows connect so codes can cross an RPC boundary unchanged.
type Code int

const (
	OK Code = iota
	Canceled
	Unknown
	InvalidArgument
	DeadlineExceeded
	NotFound
	AlreadyExists
	PermissionDenied
	ResourceExhausted
	FailedPrecondition
	Aborted
	OutOfRange
	Unimplemented
	Internal
	Unavailable
	DataLoss
	Unauthenticated
)

type codeInfo struct {
	connect connect.Code
	status  int
}

// FailedPrecondition covers state conflicts such as restoring a task that is
// not archived. Aborted marks moves that lost a race or left the board
// partially renumbered; callers refetch the columns and retry.
var codeTable = map[Code]codeInfo{
	Canceled:           {connect.CodeCanceled, 499},
	Unknown:            {connect.CodeUnknown, http.StatusInternalServerError},
	InvalidArgument:    {connect.CodeInvalidArgument, http.StatusBadRequest},
	DeadlineExceeded:   {connect.CodeDeadlineExceeded, http.StatusGatewayTimeout},
	NotFound:           {connect.CodeNotFound, http.StatusNotFound},
	AlreadyExists:      {connect.CodeAlreadyExists, http.StatusConflict},
	PermissionDenied:   {connect.CodePermissionDenied, http.StatusForbidden},
	ResourceExhausted:  {connect.CodeResourceExhausted, http.StatusTooManyRequests},
	FailedPrecondition: {connect.CodeFailedPrecondition, http.StatusPreconditionFailed},
	Aborted:            {connect.CodeAborted, http.StatusConflict},
	OutOfRange:         {connect.CodeOutOfRange, http.StatusBadRequest},
	Unimplemented:      {connect.CodeUnimplemented, http.StatusNotImplemented},
	Internal:           {connect.CodeInternal, http.StatusInternalServerError},
	Unavailable:        {connect.CodeUnavailable, http.StatusServiceUnavailable},
	DataLoss:           {connect.CodeDataLoss, http.StatusInternalServerError},
	Unauthenticated:    {connect.CodeUnauthenticated, http.StatusUnauthorized},
}

// String returns the snake_case name shared with connect codes ("ok" for OK).
func (c Code) String() string {
	if c == OK {
		return "ok"
	}
	return c.ConnectCode().String()
}

func (c Code) ConnectCode() connect.Code {
	if c == OK {
		return 0
	}
	info, ok := codeTable[c]
	if !ok {
		return connect.CodeUnknown
	}
	return info.connect
}

func (c Code) HTTPCode() int {
	if c == OK {
		return http.StatusOK
	}
	info, ok := codeTable[c]
	if !ok {
		return http.StatusInternalServerError
	}
	return info.status
}
