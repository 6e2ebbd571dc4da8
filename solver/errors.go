package solver

import "fmt"

// MalformedInputError reports a Program/Request the solver cannot act on:
// an unknown function name (requested or called) or a request pc outside
// the function. A missing block label is not wrapped in this type; it
// surfaces as the block resolver's own error.
type MalformedInputError struct {
	Function string
	PC       int
	Reason   string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("solver: malformed input in %q at pc %d: %s", e.Function, e.PC, e.Reason)
}

// InvariantViolationError reports a state the solver's own invariants rule
// out. AllSinks and Findings return it when no taut fact exists at the
// requested entry point; no other check produces it.
type InvariantViolationError struct {
	Function string
	PC       int
	Reason   string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("solver: invariant violated in %q at pc %d: %s", e.Function, e.PC, e.Reason)
}

// ResourceExhaustedError reports Ctx.MaxFacts being crossed by a run whose
// entrypoint fans out further than config.RunOptions.MaxFacts allows. The
// fact-id counter is not checked for overflow, so nothing in this package
// builds one with only a Reason.
type ResourceExhaustedError struct {
	Limit  int
	Count  int
	Reason string
}

func (e *ResourceExhaustedError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("solver: resource exhausted: %d facts exceeds limit %d", e.Count, e.Limit)
	}
	return fmt.Sprintf("solver: resource exhausted: %s", e.Reason)
}

func malformed(fn string, pc int, format string, args ...any) error {
	return &MalformedInputError{Function: fn, PC: pc, Reason: fmt.Sprintf(format, args...)}
}

func invariant(fn string, pc int, format string, args ...any) error {
	return &InvariantViolationError{Function: fn, PC: pc, Reason: fmt.Sprintf(format, args...)}
}

func resourceExhausted(limit, count int) error {
	return &ResourceExhaustedError{Limit: limit, Count: count}
}
