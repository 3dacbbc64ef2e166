// Package preflight provides readiness checks for the external tools and
// filesystem paths that adacta depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to start when a
//     required check fails, so a misconfigured converter surfaces
//     immediately instead of dead-lettering every upload.
//   - The CLI "adacta status" command renders the same results to show
//     operators what the daemon sees.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
