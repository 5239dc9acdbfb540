package refresh

import "sync"

// subscriptions is an ordered list of handles. Callers hold their own lock.
type subscriptions[T any] struct {
	nextID  int
	entries []subscription[T]
}

type subscription[T any] struct {
	id int
	v  T
}

func (s *subscriptions[T]) add(v T) int {
	s.nextID++
	s.entries = append(s.entries, subscription[T]{id: s.nextID, v: v})
	return s.nextID
}

func (s *subscriptions[T]) remove(id int) {
	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *subscriptions[T]) clear() {
	s.entries = nil
}

func (s *subscriptions[T]) snapshot() []T {
	out := make([]T, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.v
	}
	return out
}

// RoutesObserver receives every refresh result that was applied to the live
// route set.
type RoutesObserver interface {
	OnRoutesRefreshed(RefresherResult)
}

type RoutesObserverFunc func(RefresherResult)

func (f RoutesObserverFunc) OnRoutesRefreshed(r RefresherResult) { f(r) }

// ObserversManager fans refreshed route results out to registered observers
// in registration order.
type ObserversManager struct {
	mu        sync.Mutex
	observers subscriptions[RoutesObserver]
}

func NewObserversManager() *ObserversManager {
	return &ObserversManager{}
}

func (m *ObserversManager) Register(o RoutesObserver) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.observers.add(o)
}

func (m *ObserversManager) Unregister(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers.remove(id)
}

func (m *ObserversManager) UnregisterAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers.clear()
}

func (m *ObserversManager) OnRoutesRefreshed(r RefresherResult) {
	m.mu.Lock()
	observers := m.observers.snapshot()
	m.mu.Unlock()
	for _, o := range observers {
		o.OnRoutesRefreshed(r)
	}
}
