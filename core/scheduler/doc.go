// Package scheduler runs the periodic fleet loops. Each Job gets its own
// ticker goroutine so a slow dispatch cycle never delays the watchdog.
// Cycles run on a context detached from the runner's, so Stop lets an
// in-flight cycle finish instead of cutting it halfway through a car update.
package scheduler
