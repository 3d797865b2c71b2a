// Package docker runs the matchering tools inside a container image.
//
// It is the container backend of runner.Runner: the same argument list
// that the local backend executes on the host is executed in a short-lived
// container, with the directories of every absolute path argument
// bind-mounted at the same location so the tools read and write the
// project's audio files directly.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Management labels on every tool container, used to find leftovers
//   - Tool execution: create, start, wait with timeout, collect logs, remove
//   - Listing and pruning of leftover tool containers ("doctor --prune")
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
