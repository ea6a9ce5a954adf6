package clog

import (
	"log/slog"

	"connectrpc.com/connect"
)

// StatusLevel picks the level a finished HTTP request is logged at. Client
// disconnects (499) are routine.
func StatusLevel(status int) slog.Level {
	switch {
	case status == 499:
		return slog.LevelInfo
	case status >= 500 || status < 100:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// CodeLevel decides how loudly an error code is logged. Caller mistakes and
// expected board conflicts stay at info; stale reorders are worth a warning.
func CodeLevel(code connect.Code) slog.Level {
	switch code {
	case connect.CodeCanceled,
		connect.CodeInvalidArgument,
		connect.CodeDeadlineExceeded,
		connect.CodeNotFound,
		connect.CodeAlreadyExists,
		connect.CodePermissionDenied,
		connect.CodeFailedPrecondition,
		connect.CodeOutOfRange,
		connect.CodeUnauthenticated:
		return slog.LevelInfo
	case connect.CodeAborted:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
