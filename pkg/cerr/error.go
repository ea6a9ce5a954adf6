package cerr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime"

	"buf.build/gen/go/bufbuild/protovalidate/protocolbuffers/go/buf/validate"
	"google.golang.org/protobuf/proto"

	"github.com/kazz187/sprintguild/pkg/clog"
)

type Error struct {
	Code    Code
	Msg     string          // returned to the caller together with Code
	Err     error           // logged only
	Stack   string          // captured for error-level codes
	Details []proto.Message // returned to the caller
}

func NewError(code Code, msg string, underlying error) *Error {
	err := &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
	if clog.CodeLevel(code.ConnectCode()) >= slog.LevelError {
		stackTrace := make([]byte, 2048)
		n := runtime.Stack(stackTrace, false)
		err.Stack = string(stackTrace[0:n])
	}
	return err
}

// NewValidationError builds an InvalidArgument error carrying one field
// violation. rule is a stable machine-readable id such as "title.required".
func NewValidationError(field, rule, msg string) *Error {
	err := NewError(InvalidArgument, msg, nil)
	err.AddFieldViolation(field, rule, msg)
	return err
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code.String(), e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) AddDetailMessage(msg string) *Error {
	e.Details = append(e.Details, &validate.Violation{Message: &msg})
	return e
}

func (e *Error) AddFieldViolation(field, rule, msg string) *Error {
	e.Details = append(e.Details, &validate.Violation{
		Message: proto.String(msg),
		RuleId:  proto.String(rule),
		Field: &validate.FieldPath{
			Elements: []*validate.FieldPathElement{{FieldName: proto.String(field)}},
		},
	})
	return e
}

// Violations flattens the violation details for JSON responses.
func (e *Error) Violations() []Violation {
	var out []Violation
	for _, d := range e.Details {
		v, ok := d.(*validate.Violation)
		if !ok {
			continue
		}
		var field string
		if elems := v.GetField().GetElements(); len(elems) > 0 {
			field = elems[0].GetFieldName()
		}
		out = append(out, Violation{
			Field:   field,
			Rule:    v.GetRuleId(),
			Message: v.GetMessage(),
		})
	}
	return out
}

type Violation struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

// Normalize converts any error into an *Error, treating cancellation as
// Canceled and anything unrecognised as Unknown. It records the error on the
// request log context.
func Normalize(ctx context.Context, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return NewError(Canceled, "connection closed", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.Err == "operation was canceled" {
		return NewError(Canceled, "connection closed", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(DeadlineExceeded, "deadline exceeded", err)
	}

	clog.AddError(ctx, err)
	var cerr *Error
	if errors.As(err, &cerr) {
		if cerr.Stack != "" {
			clog.AddStack(ctx, cerr.Stack)
		}
		return cerr
	}
	return NewError(Unknown, "unknown error", err)
}

func IsCode(err error, code Code) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, OK for nil and
// Unknown for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return Unknown
}
