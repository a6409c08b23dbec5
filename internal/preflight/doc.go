// Package preflight provides readiness checks for the filesystem paths and
// listen address the scott server depends on.
//
// These checks run in two contexts:
//   - `scott serve` calls RunAll before opening the store and refuses to
//     start when a required check fails.
//   - `scott status` uses the individual checks, plus CheckServer, to show
//     health without starting anything.
package preflight
