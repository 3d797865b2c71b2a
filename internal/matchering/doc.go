// Package matchering implements the matchering flows between a REAPER
// project and the three external programs:
//
//	analyzer   <target> <reference> <params.json>
//	generator  <params.json> <output.jsfx> [profile]
//	processor  <target> <reference> <output.wav>
//
// The main flow checks the interpreter, reads the two selected items
// (first = TARGET, second = REFERENCE) and asks whether to analyze and load
// a real-time JSFX effect on the target's track, or to render the mastered
// file offline onto a new "Mastered" track.
//
// Every step that fails tells the user why through the UI and stops the
// flow; nothing is retried. Those failures come back as *model.CLIError
// values with Reported set, so the caller only has to pick an exit code.
// The host project and the UI are interfaces, which keeps the flows
// testable without REAPER or a terminal.
package matchering
