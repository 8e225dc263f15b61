// Package board adapts a notnil/chess game to the core.Board interface used
// by the orchestrator. It is the single authority for the game position:
// every read and write goes through one mutex, so a computer move and a
// human move can never interleave.
package board
