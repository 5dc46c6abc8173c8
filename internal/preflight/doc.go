// Package preflight provides readiness checks that run before any resource
// is touched.
//
// These checks run in two contexts:
//   - The run command calls RunAll and refuses to start when a check fails,
//     so a doomed run never stops a service.
//   - The CLI "relocate status" command uses the individual check functions
//     to display host readiness next to per-resource progress.
package preflight
