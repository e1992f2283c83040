// Package main hosts the convoy CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration (TOML file, optional .env
// file, flag overrides), sets up structured logging, and hands conversion
// runs to internal/workflow. Batch and watch runs share the same signal
// handling: the first interrupt lets the current file finish, the second
// aborts it.
//
// Commands here stay thin. Behaviour belongs in the internal packages.
package main
