// Package sshsession owns every live terminal session in the process.
//
// A Manager resolves a saved connection through a Catalog, opens a shell
// through a Dialer, records the resulting Session in a Registry under a
// fresh id, and runs one bridge goroutine per session that forwards the
// transport's events to a single Sink as Notifications.
//
// Each session's notifications are delivered in the order the transport
// produced them and end with exactly one Closed or Errored notification,
// after which nothing more is delivered for that id. Removal from the
// Registry is the single point where an explicit Disconnect and an
// asynchronous transport closure race; whichever removes the entry
// delivers the terminal notification.
package sshsession
