// Package game holds the per-game configuration: who controls each side and
// how strong the computer plays. A Session is validated when it is created,
// so code that receives one never has to re-check the mode invariants.
//
// IsComputerTurn is the turn gate used by the orchestrator:
//
//	sess, err := game.NewSession(game.Config{
//	    Mode:       core.HumanVsComputer,
//	    HumanColor: chess.White,
//	    Difficulty: &profile,
//	})
//	if game.IsComputerTurn(sess, board.SideToMove()) {
//	    // ask the orchestrator for a move
//	}
package game
