// Package session houses concrete implementations of core.SessionStore,
// which keeps the event history of each game.
//
// Recorder bridges the event publisher and a store: subscribe it once and
// every MoveApplied, ComputerThinking and SearchFailed event is kept under
// its session id.
package session
