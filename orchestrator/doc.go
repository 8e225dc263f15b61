// Package orchestrator decides where a computer move comes from and applies
// it to the board.
//
// For every computer turn the orchestrator:
//
//  1. checks with the turn gate that the side to move is computer controlled
//  2. asks the opening table for a move; a hit is applied immediately and
//     the engine is never contacted
//  3. otherwise resolves the difficulty profile for the side to move and
//     runs an engine search with that budget
//  4. applies the chosen move only if the board still holds the position
//     the move was chosen for, then publishes a MoveApplied event
//
// Failures never leave a partially applied move behind; they are reported
// to the caller and published as SearchFailed events. ComputerThinking
// events bracket every engine search.
//
// Hints reuse the same machinery without touching the board: Hint searches
// for a fixed short time and BookHint consults only the opening table. Both
// publish HintReady.
package orchestrator
