// Package live defines the contract between the synchronization engine and the
// business-logic modules it hosts.
//
// The live package implements:
//   - UserID, the opaque participant identifier taken from the connection handshake
//   - Logic, the typed capability interface a business module implements
//   - State, the uniform erased form of Logic consumed by a Host
//   - Effect, the result of every state-mutating callback
//   - Seed, the typed initial payload carried across a handoff
//
// Modules:
//
// A module is written against Logic[E, V] where E is its event type and V its
// per-user view type, then wrapped once with Wrap:
//
//	state := live.Wrap[counter.Event, counter.View](counter.New())
//
// Events arrive from clients as externally tagged JSON, either a bare string
// ("Increment") or a single-key object ({"SetName": "Ann"}). DecodeTagged splits
// such a value into tag and payload so module event types can implement
// json.Unmarshaler without repeating the parsing.
//
// Effects:
//
// The zero Effect means "no transition". Redirect moves every subscriber of the
// current route to an existing or lazily creatable route; RedirectWithInit does
// the same but lets the target be built from a Seed when it does not exist yet.
package live
