// Package player watches local media players and reports what they are playing.
//
// A Monitor polls a WindowSource on a fixed interval, keeps one playback
// session per allow-listed player process and raises events as sessions
// start, cross the watch threshold, switch files or disappear. The poll
// goroutine never touches the network; handlers are expected to hand work
// off quickly.
//
// Platform sources:
//
//	linux    procfs process names and command lines, MPRIS titles over D-Bus
//	windows  top-level window titles via EnumWindows
package player
