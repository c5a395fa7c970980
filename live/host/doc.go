// Package host runs one live route instance.
//
// A Host exclusively owns one live.State and the set of subscribed sessions.
// Every mutation (subscribe, unsubscribe, client event, tick) travels through a
// single inbox and is processed by the Host's own goroutine, one message at a
// time, so neither the state nor the subscriber set is ever touched
// concurrently and no locks are needed.
//
// After any successful event, join, or tick that does not hand off, each
// subscriber receives its own projection of the state as an Update. When a
// callback returns a redirect Effect, the Host resolves the target through its
// Resolver, empties its subscriber set, and only then tells every former
// subscriber to move, so a session can never receive a view of the old route
// after one of the new route.
//
// Usage:
//
//	h := host.New("/counter", state, resolver, logger)
//	go h.Run(ctx)
//
//	h.Subscribe(ctx, session, userID)
//	h.Send(ctx, []byte(`"Increment"`), userID)
package host
