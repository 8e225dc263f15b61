// Package core provides the foundational domain types and interfaces shared by
// the chessbridge packages. It defines:
//
//   - GameMode, the tagged enum over who controls each side
//   - MoveSource, telling book, engine and human moves apart
//   - Event plus Observer / Publisher, the notification surface consumed by
//     a UI or controller layer
//   - Board, the narrow view of the external rules authority
//   - GameRecord / SessionStore, the per-game event history
//
// The package keeps implementation concerns (process supervision, opening
// tables, orchestration) out of scope and exposes small interfaces so
// alternative backends can be plugged in.
package core
