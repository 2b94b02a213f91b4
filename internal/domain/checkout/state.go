package checkout

// State implements the state pattern for the checkout lifecycle. The remote
// commit operation empties the remote cart, so once a commit completed any
// cart mutation must invalidate it and force a re-commit.
type State interface {
	Status() Status
	OnCommitStarted() (State, error)
	OnCommitSucceeded() (State, error)
	OnCommitFailed() (State, error)
	OnCartMutated() (State, error)
}

// NewState returns the initial lifecycle state.
func NewState() State { return notStartedState{} }

type notStartedState struct{}

func (notStartedState) Status() Status { return StatusNotStarted }

func (notStartedState) OnCommitStarted() (State, error) {
	return inProgressState{}, nil
}

func (notStartedState) OnCommitSucceeded() (State, error) {
	return nil, ErrInvalidStateTransition
}

func (notStartedState) OnCommitFailed() (State, error) {
	return nil, ErrInvalidStateTransition
}

func (notStartedState) OnCartMutated() (State, error) {
	return notStartedState{}, nil
}

type inProgressState struct{}

func (inProgressState) Status() Status { return StatusInProgress }

func (inProgressState) OnCommitStarted() (State, error) {
	return nil, ErrInvalidStateTransition
}

func (inProgressState) OnCommitSucceeded() (State, error) {
	return completedState{}, nil
}

func (inProgressState) OnCommitFailed() (State, error) {
	return notStartedState{}, nil
}

func (inProgressState) OnCartMutated() (State, error) {
	return nil, ErrInvalidStateTransition
}

type completedState struct{}

func (completedState) Status() Status { return StatusCompleted }

func (completedState) OnCommitStarted() (State, error) {
	return completedState{}, nil
}

func (completedState) OnCommitSucceeded() (State, error) {
	return completedState{}, nil
}

func (completedState) OnCommitFailed() (State, error) {
	return nil, ErrInvalidStateTransition
}

func (completedState) OnCartMutated() (State, error) {
	return invalidatedState{}, nil
}

type invalidatedState struct{}

func (invalidatedState) Status() Status { return StatusInvalidated }

func (invalidatedState) OnCommitStarted() (State, error) {
	return inProgressState{}, nil
}

func (invalidatedState) OnCommitSucceeded() (State, error) {
	return nil, ErrInvalidStateTransition
}

func (invalidatedState) OnCommitFailed() (State, error) {
	return nil, ErrInvalidStateTransition
}

func (invalidatedState) OnCartMutated() (State, error) {
	return invalidatedState{}, nil
}
