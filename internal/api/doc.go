// Package api defines the HTTP wire types shared by the daemon's API
// server and the CLI, plus the client the CLI uses to talk to a running
// daemon.
//
// The types here are transport shapes, deliberately decoupled from the
// storage package's internal structs so the on-disk manifest format can
// evolve without breaking API consumers.
package api
