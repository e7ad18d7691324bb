// Package notify publishes chain lifecycle events and notify-rule
// messages for the scheduler.
//
// A rule's When selects the moment it fires:
//
//	start    chain dispatched
//	success  chain ran every operation
//	failure  an operation failed (a stopped chain is not a failure)
//	always   chain finished for any reason
//
// Rules with SendImage attach a capture from the configured ImageSource.
package notify
