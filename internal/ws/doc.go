// Package ws provides WebSocket connection handling and message routing
// for the rendezvous relay.
//
// The package implements:
//   - Client: one connection with a bounded outbound queue and the send primitive
//   - Session: the per-connection event loop (frames, pongs, heartbeat ticks, close)
//   - Dispatcher: applies subscribe/unsubscribe/publish/ping envelopes
//   - Hub: the set of live sessions, closed together on shutdown
//   - Handler: upgrades HTTP requests and attaches sessions
//
// Key behaviour:
//   - Published envelopes are relayed verbatim to every subscriber, the
//     publisher included when it is subscribed
//   - A broken or slow receiver is closed without affecting the others
//   - A peer that misses a heartbeat pong is closed at the next tick
//   - A frame that is not valid JSON closes only its own connection
package ws
