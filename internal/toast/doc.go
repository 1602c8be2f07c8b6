// Package toast holds the ordered list of transient notifications shown to
// the user.
//
// Every toast removes itself after its timeout unless dismissed first.
// Toast ids are assigned by the queue, increase monotonically and are never
// reused, so a timer that fires after its toast is gone does nothing.
package toast
