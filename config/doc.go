// Package config loads chessbridge settings from YAML.
//
// Settings are an explicit value passed to whoever needs them; nothing in
// chessbridge reads configuration from package level state. A typical file:
//
//	engine:
//	  path: /usr/local/bin/stockfish
//	  options:
//	    Hash: "128"
//	    Threads: "2"
//	  startup_timeout: 15s
//	  hint_time: 2s
//	book:
//	  path: openings.cbk
//	  min_weight: 1
//	game:
//	  mode: human_vs_computer
//	  human_color: white
//	  difficulty: intermediate
//	  difficulties:
//	    master:
//	      time_budget: 8s
//	logging:
//	  level: info
//	  format: text
//	  backend: slog
//
// Fields missing from the file keep the values of Default().
package config
