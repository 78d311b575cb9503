// Package debug keeps a live model of a program running under a debug
// adapter, fed by the dapviz bridge over one WebSocket connection.
//
// # Architecture
//
//	bridge ──frames──▶ wire.Transport ──events──▶ Session loop
//	                                               │
//	                                               ▼
//	                                    program.Reducer (decode + reduce)
//	                                               │
//	                                   atomic View ◀┘ ──▶ subscribers
//
//	caller ──Sender.Send──▶ command.Encode ──9 bytes──▶ wire.Transport
//
// # Session States
//
//   - Disconnected: no connection, no program state
//   - Connecting: dial in progress
//   - Connected: a Sender is available; program state may still be absent
//
// A transport close returns the session to Disconnected, discards the
// program state and invalidates the Sender. Nothing reconnects on its own;
// call Connect again.
//
// # Concurrency
//
// Every transport event is delivered on one channel read by a single
// goroutine. Each message is fully reduced before the next is read, and
// the resulting View is published with an atomic swap, so View never
// blocks and never observes a partial update. Heap graphs are built on
// demand from the current View by Graph.
package debug
