package app

import (
	"io"
	"log/slog"

	"github.com/mattn/go-isatty"

	"github.com/kazz187/sprintguild/internal/config"
	"github.com/kazz187/sprintguild/pkg/clog"
)

// SetupLogger installs the default slog logger: the coloured text handler for
// local development, JSON otherwise.
func SetupLogger(env *config.Env, w io.Writer) {
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(w, clog.WithLevel(level), clog.WithColor(isTerminal(w)))
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && isatty.IsTerminal(f.Fd())
}
