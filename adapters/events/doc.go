// Package events adapts gridauth audit events onto a Watermill publisher so
// downstream consumers (fraud scoring, notification fan-out) can subscribe to
// the authentication stream without coupling to the engine.
//
// # What this package must NOT do
//
//   - Block authentication flows: the engine's dispatcher already decouples
//     emission from delivery.
//   - Interpret events; it only serializes and publishes them.
package events
