package core

// Result is what applying a single DiffItem returns. It carries the human
// readable message alongside the changed/failed flags so the caller can
// decide how loudly to report it.
type Result struct {
	Changed bool
	Failed  bool
	Message string
	Error   error
}

// SuccessChange returns a result for a mutation that changed the backend.
func SuccessChange(msg string) Result {
	return Result{Changed: true, Message: msg}
}

// SuccessNoChange returns a result for an action that turned out to be a no-op.
func SuccessNoChange(msg string) Result {
	return Result{Changed: false, Message: msg}
}

// Failure returns a failed result.
func Failure(err error, msg string) Result {
	return Result{Failed: true, Message: msg, Error: err}
}

// Summary is the per-kind tally produced after apply.
type Summary struct {
	Kind      Kind
	Succeeded int
	Failed    int
	Skipped   int // protection suppressions and kind-level fetch skips
}

// Record folds one apply result into the tally. No-op results count as
// skipped so protection suppressions show up in the run report.
func (s *Summary) Record(r Result) {
	switch {
	case r.Failed:
		s.Failed++
	case r.Changed:
		s.Succeeded++
	default:
		s.Skipped++
	}
}
