package refresh

import "sync"

// State is a refresh lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStarted
	StateFinishedSuccess
	StateFinishedFailed
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarted:
		return "STARTED"
	case StateFinishedSuccess:
		return "FINISHED_SUCCESS"
	case StateFinishedFailed:
		return "FINISHED_FAILED"
	case StateCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// StateResult is what state observers receive. Message carries the failure
// reason for StateFinishedFailed.
type StateResult struct {
	State   State
	Message string
	CycleID string
}

// StateObserver receives lifecycle transitions.
type StateObserver interface {
	OnNewState(StateResult)
}

// StateObserverFunc adapts a function to StateObserver.
type StateObserverFunc func(StateResult)

func (f StateObserverFunc) OnNewState(s StateResult) { f(s) }

func canChange(from, to State) bool {
	switch to {
	case StateFinishedSuccess, StateFinishedFailed, StateCanceled:
		return from == StateStarted
	default:
		return true
	}
}

// StateHolder tracks the refresh state and fans transitions out to observers.
// New observers are replayed the current state.
type StateHolder struct {
	mu        sync.Mutex
	current   StateResult
	cycleID   string
	observers subscriptions[StateObserver]
}

func NewStateHolder() *StateHolder {
	return &StateHolder{}
}

// OnStarted opens a cycle; later transitions are tagged with cycleID.
func (h *StateHolder) OnStarted(cycleID string) {
	h.mu.Lock()
	if h.current.State != StateStarted {
		h.cycleID = cycleID
	}
	h.mu.Unlock()
	h.onNewState(StateStarted, "")
}

func (h *StateHolder) OnSuccess()               { h.onNewState(StateFinishedSuccess, "") }
func (h *StateHolder) OnFailure(message string) { h.onNewState(StateFinishedFailed, message) }
func (h *StateHolder) OnCancel()                { h.onNewState(StateCanceled, "") }

// Reset moves the holder back to idle.
func (h *StateHolder) Reset() { h.onNewState(StateIdle, "") }

func (h *StateHolder) Current() StateResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Register adds o and immediately sends it the current state. The returned id
// is used with Unregister.
func (h *StateHolder) Register(o StateObserver) int {
	h.mu.Lock()
	id := h.observers.add(o)
	current := h.current
	h.mu.Unlock()
	o.OnNewState(current)
	return id
}

func (h *StateHolder) Unregister(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers.remove(id)
}

func (h *StateHolder) UnregisterAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers.clear()
}

func (h *StateHolder) onNewState(to State, message string) {
	h.mu.Lock()
	from := h.current.State
	if from == to || !canChange(from, to) {
		h.mu.Unlock()
		return
	}
	h.current = StateResult{State: to, Message: message, CycleID: h.cycleID}
	res := h.current
	observers := h.observers.snapshot()
	h.mu.Unlock()

	for _, o := range observers {
		o.OnNewState(res)
	}
}
