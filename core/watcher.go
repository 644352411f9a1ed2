// Package core implements the event plumbing shared by the components. The
// registry notifies its lifecycle events through a watcher so that the
// observers, such as the tests or a monitoring component, follow the ballots
// without polling.
//
// Documentation Last Review: 19.10.2026
//
package core

import "sync"

// Observer is the interface to implement to watch events.
type Observer interface {
	NotifyCallback(event interface{})
}

// Observable provides primitives to add and remove observers and to notify
// them of new events.
type Observable interface {
	// Add adds the observer to the list of observers that will be notified of
	// new events.
	Add(observer Observer)

	// Remove removes the observer from the list thus stopping it from receiving
	// new events.
	Remove(observer Observer)

	// Notify notifies the observers of a new event.
	Notify(event interface{})
}

// Watcher is an implementation of the Observable interface. The observers are
// notified in the order they were added.
//
// - implements core.Observable
type Watcher struct {
	sync.Mutex

	observers []Observer
}

// NewWatcher creates a new empty watcher.
func NewWatcher() *Watcher {
	return &Watcher{}
}

// Add implements core.Observable. An observer already in the list is ignored.
func (w *Watcher) Add(observer Observer) {
	w.Lock()
	defer w.Unlock()

	if w.indexOf(observer) >= 0 {
		return
	}

	w.observers = append(w.observers, observer)
}

// Remove implements core.Observable.
func (w *Watcher) Remove(observer Observer) {
	w.Lock()
	defer w.Unlock()

	index := w.indexOf(observer)
	if index < 0 {
		return
	}

	observers := make([]Observer, 0, len(w.observers)-1)
	observers = append(observers, w.observers[:index]...)
	w.observers = append(observers, w.observers[index+1:]...)
}

// Len returns the number of observers.
func (w *Watcher) Len() int {
	w.Lock()
	defer w.Unlock()

	return len(w.observers)
}

// Notify implements core.Observable. It notifies the observers one after each
// other. The list is read before the first callback so that an observer can
// remove itself while it is notified.
func (w *Watcher) Notify(event interface{}) {
	w.Lock()
	observers := w.observers
	w.Unlock()

	for _, obs := range observers {
		obs.NotifyCallback(event)
	}
}

func (w *Watcher) indexOf(observer Observer) int {
	for i, obs := range w.observers {
		if obs == observer {
			return i
		}
	}

	return -1
}
