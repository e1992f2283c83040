// Package preflight provides readiness checks for the binaries and
// directories convoy depends on.
//
// Batch and watch runs call RunAll before touching any file and refuse to
// start when a check fails. The `convoy status` command renders the same
// results alongside binary availability from CheckSystemDeps.
package preflight
