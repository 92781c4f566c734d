// Package estimate converts story positions on the planning canvas into
// scores and Fibonacci story-point estimates.
//
// The canvas has two axes bounded to [PositionMin, PositionMax]. The x axis is
// complexity, where lower is simpler. The y axis is uncertainty, where higher
// means less uncertain. One story in a session is the anchor; its team-assigned
// points are the reference every other story is estimated against.
//
// Every function in this package is pure: inputs are never mutated and the
// results are new values, so callers may use them from any goroutine.
package estimate
