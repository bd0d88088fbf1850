// Package telemetry fans node events out to Server-Sent Events clients.
//
// Every event gets a monotonic ID and is kept in a bounded replay buffer,
// so a client reconnecting with a Last-Event-ID header receives what it
// missed. A heartbeat event is published while at least one client is
// connected.
package telemetry
