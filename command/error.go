package command

import (
	"context"
	"errors"

	errorpkg "github.com/dsort/dsort/error"
	"github.com/dsort/dsort/log"
)

func isCancelationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	for _, e := range errorpkg.Each(err) {
		if errors.Is(e, context.Canceled) {
			return true
		}
	}
	return false
}

// printError logs every underlying failure of err as one diagnostic line
// each, flattening aggregated errors from concurrent goroutines (the
// single diagnostic line per failure requirement).
func printError(op string, err error) {
	for _, e := range errorpkg.Each(err) {
		log.Error(log.Failure{Op: op, Err: e.Error()})
	}
}
