package refresh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type stateRecorder struct {
	states []StateResult
}

func (r *stateRecorder) OnNewState(s StateResult) { r.states = append(r.states, s) }

func TestStateHolderReplaysCurrentState(t *testing.T) {
	h := NewStateHolder()
	h.OnStarted("c-1")

	rec := &stateRecorder{}
	h.Register(rec)

	assert.Equal(t, []StateResult{{State: StateStarted, CycleID: "c-1"}}, rec.states)
}

func TestStateHolderSuccessCycle(t *testing.T) {
	h := NewStateHolder()
	rec := &stateRecorder{}
	h.Register(rec)

	h.OnStarted("c-1")
	h.OnSuccess()
	h.Reset()

	assert.Equal(t, []string{"IDLE", "STARTED", "FINISHED_SUCCESS", "IDLE"}, stateNames(rec.states))
	assert.Equal(t, "c-1", rec.states[2].CycleID)
}

func TestStateHolderDuplicateTransitionsSuppressed(t *testing.T) {
	h := NewStateHolder()
	rec := &stateRecorder{}
	h.Register(rec)

	h.OnStarted("c-1")
	h.OnStarted("c-2")
	h.OnFailure("timeout")
	h.OnFailure("other")
	h.Reset()
	h.Reset()

	assert.Equal(t, []string{"IDLE", "STARTED", "FINISHED_FAILED(timeout)", "IDLE"}, stateNames(rec.states))
	assert.Equal(t, "c-1", rec.states[2].CycleID)
}

func TestStateHolderCancelOnlyFromStarted(t *testing.T) {
	h := NewStateHolder()
	rec := &stateRecorder{}
	h.Register(rec)

	h.OnCancel()
	h.OnStarted("c-1")
	h.OnSuccess()
	h.OnCancel()
	h.Reset()
	h.OnStarted("c-2")
	h.OnCancel()
	h.OnSuccess()

	assert.Equal(t, []string{"IDLE", "STARTED", "FINISHED_SUCCESS", "IDLE", "STARTED", "CANCELED"}, stateNames(rec.states))
	assert.Equal(t, StateCanceled, h.Current().State)
}

func TestStateHolderUnregister(t *testing.T) {
	h := NewStateHolder()
	first, second := &stateRecorder{}, &stateRecorder{}
	id := h.Register(first)
	h.Register(second)

	h.Unregister(id)
	h.OnStarted("c-1")
	assert.Len(t, first.states, 1)
	assert.Len(t, second.states, 2)

	h.UnregisterAll()
	h.OnSuccess()
	assert.Len(t, second.states, 2)
}

func TestStateHolderObserverCanUnregisterDuringNotify(t *testing.T) {
	h := NewStateHolder()
	var id int
	calls := 0
	id = h.Register(StateObserverFunc(func(StateResult) {
		calls++
		h.Unregister(id)
	}))
	other := &stateRecorder{}
	h.Register(other)

	h.OnStarted("c-1")
	h.OnSuccess()

	assert.Equal(t, 2, calls) // replay plus the first transition
	assert.Equal(t, []string{"IDLE", "STARTED", "FINISHED_SUCCESS"}, stateNames(other.states))
}

func TestObserversManagerOrder(t *testing.T) {
	m := NewObserversManager()
	var order []string
	m.Register(RoutesObserverFunc(func(RefresherResult) { order = append(order, "a") }))
	id := m.Register(RoutesObserverFunc(func(RefresherResult) { order = append(order, "b") }))
	m.Register(RoutesObserverFunc(func(RefresherResult) { order = append(order, "c") }))

	m.OnRoutesRefreshed(RefresherResult{Success: true})
	m.Unregister(id)
	m.OnRoutesRefreshed(RefresherResult{Success: true})
	m.UnregisterAll()
	m.OnRoutesRefreshed(RefresherResult{Success: true})

	assert.Equal(t, []string{"a", "b", "c", "a", "c"}, order)
}
