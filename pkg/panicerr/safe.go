// Package panicerr turns panics in long-running workers into errors.
package panicerr

import (
	"context"

	"github.com/sourcegraph/conc/panics"
)

// Safe runs fn and returns its error, or the recovered panic as an error.
func Safe(fn func() error) error {
	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() {
		err = fn()
	})
	if err != nil {
		return err
	}
	return catcher.Recovered().AsError()
}

// SafeContext is Safe for functions taking a context.
func SafeContext(ctx context.Context, fn func(context.Context) error) error {
	return Safe(func() error { return fn(ctx) })
}
