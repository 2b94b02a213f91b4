package checkout

import "fmt"

// Stage names one step of the orchestration pipeline.
type Stage string

const (
	StageStock    Stage = "stock"
	StageCheckout Stage = "checkout"
	StageAddress  Stage = "address"
	StageOrder    Stage = "order"
	StagePayment  Stage = "payment"
)

// Reason codes carried on failures that callers branch on.
const (
	ReasonIDMissing     = "id-missing"
	ReasonNotCheckedOut = "not-checked-out"
	ReasonOrderNotFound = "order-not-found"
)

// Failure is the single terminal error shape of the orchestrator: every
// failed run resolves to exactly one Failure naming the stage it died in.
// The chain is only restartable from the beginning, never mid-sequence.
type Failure struct {
	Stage  Stage
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("checkout failed at %s: %s: %v", f.Stage, f.Reason, f.Err)
	}
	return fmt.Sprintf("checkout failed at %s: %s", f.Stage, f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail builds a stage failure wrapping the underlying cause.
func Fail(stage Stage, reason string, err error) *Failure {
	return &Failure{Stage: stage, Reason: reason, Err: err}
}
