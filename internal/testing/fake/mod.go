// Package fake provides fake implementations for interfaces commonly used in
// the repository.
// The implementations offer configuration to return errors when it is needed by
// the unit test and it is also possible to record the call of functions of an
// object in some cases.
package fake

import (
	"fmt"
	"sync"
	"time"

	"go.dedis.ch/ballotbox/reveal"
	"golang.org/x/xerrors"
)

var fakeErr = xerrors.New("fake error")

// GetError returns the fake error.
func GetError() error {
	return fakeErr
}

// Err returns the message of the fake error with a prefix, as it is expected
// when the error is wrapped.
func Err(msg string) string {
	return fmt.Sprintf("%s: %v", msg, fakeErr)
}

// Counter is a helper to delay errors or actions. It can be nil without
// panics.
type Counter struct {
	sync.Mutex
	Value int
}

// NewCounter returns a new counter set to the given value.
func NewCounter(value int) *Counter {
	return &Counter{
		Value: value,
	}
}

// Done returns true when the counter reached zero.
func (c *Counter) Done() bool {
	if c == nil {
		return true
	}

	c.Lock()
	defer c.Unlock()

	return c.Value <= 0
}

// Decrease decrements the counter.
func (c *Counter) Decrease() {
	if c == nil {
		return
	}

	c.Lock()
	c.Value--
	c.Unlock()
}

// Call is a tool to keep track of a function calls.
type Call struct {
	sync.Mutex
	calls [][]interface{}
}

// Get returns the nth call ith parameter.
func (c *Call) Get(n, i int) interface{} {
	c.Lock()
	defer c.Unlock()

	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	c.Lock()
	defer c.Unlock()

	return len(c.calls)
}

// Add adds a call to the list.
func (c *Call) Add(args ...interface{}) {
	c.Lock()
	c.calls = append(c.calls, args)
	c.Unlock()
}

// Clock is a fake source of time that only moves when told to.
type Clock struct {
	sync.Mutex
	now time.Time
}

// NewClock returns a clock starting at the given time.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current time of the clock.
func (c *Clock) Now() time.Time {
	c.Lock()
	defer c.Unlock()

	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.Lock()
	c.now = c.now.Add(d)
	c.Unlock()
}

// Facility is a fake decryption facility that records the requests.
//
// - implements reveal.Facility
type Facility struct {
	sync.Mutex
	requests []reveal.Request
	err      error
}

// NewBadFacility returns a facility that refuses every request.
func NewBadFacility() *Facility {
	return &Facility{err: fakeErr}
}

// RequestReveal implements reveal.Facility.
func (f *Facility) RequestReveal(req reveal.Request) error {
	f.Lock()
	defer f.Unlock()

	f.requests = append(f.requests, req)

	return f.err
}

// Requests returns the requests received so far.
func (f *Facility) Requests() []reveal.Request {
	f.Lock()
	defer f.Unlock()

	return append([]reveal.Request(nil), f.requests...)
}

// Last returns the last request received.
func (f *Facility) Last() reveal.Request {
	f.Lock()
	defer f.Unlock()

	return f.requests[len(f.requests)-1]
}

// SetError sets the error returned by the next requests.
func (f *Facility) SetError(err error) {
	f.Lock()
	f.err = err
	f.Unlock()
}

// Observer is a fake observer that records the events.
type Observer struct {
	sync.Mutex
	events []interface{}
}

// NotifyCallback implements core.Observer.
func (o *Observer) NotifyCallback(event interface{}) {
	o.Lock()
	o.events = append(o.events, event)
	o.Unlock()
}

// Events returns the events received so far.
func (o *Observer) Events() []interface{} {
	o.Lock()
	defer o.Unlock()

	return append([]interface{}(nil), o.events...)
}
