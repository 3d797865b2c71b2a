// Package runner executes the external matchering programs.
//
// The analyzer, the JSFX generator and the offline processor are opaque
// executables (usually Python scripts run by a virtualenv interpreter).
// This package runs one of them synchronously, with a hard timeout, and
// hands back what it printed:
//   - Local runs the program with os/exec on the host
//   - the docker package provides a second Runner that executes the same
//     argument list inside a container image
//
// Failures are typed so callers can tell a timeout (TimeoutError) from a
// non-zero exit (ExitError) from a program that could not be started at all.
package runner
