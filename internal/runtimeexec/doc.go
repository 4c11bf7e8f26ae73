// Package runtimeexec turns program source into a running interpreter.
//
// It owns three steps of an execution:
//
//   - [Classify] guesses the language of untagged source.
//   - [BuildHarness] wraps source in a runner script that decodes the JSON
//     payload argument, calls main(input) and prints exactly one JSON value
//     on stdout. Anything the program itself prints goes to stderr.
//   - [ProcessExecutor] spawns one interpreter process per call, captures its
//     streams and maps failures onto [domain.Error] kinds.
//
// Harness failures are reported on stderr with a single line of the form
//
//	::harness-error::{"kind":"entry_point_undefined","message":"main(input) is not defined"}
//
// which the executor lifts into the returned error.
//
// JavaScript sources are evaluated inside an async loader function, so static
// import statements and exports other than main do not parse. Node reports
// that before the harness runs; the executor then uses the SyntaxError line
// from stderr as the message with cause syntax_error. Dynamic import() works.
package runtimeexec
