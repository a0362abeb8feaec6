// Package viz provides a terminal replay of solved landing trajectories.
//
// The replay is a Bubble Tea program drawn on a Braille [Canvas]:
//
//   - [Replay]: plays a trajectory back in physical time
//   - [Canvas]: Braille-based pixel canvas with a world [Viewport]
//   - Theme selection with 3 built-in color schemes
//
// # Key Bindings
//
//	Space - Pause/Resume playback
//	R     - Restart from t = 0
//	+/-   - Playback speed
//	[]    - Step back/forward one frame while paused
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
