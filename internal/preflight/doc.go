// Package preflight provides readiness checks for the filesystem paths and
// external programs smoothieq depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failed check as a
//     warning.
//   - The CLI "smoothieq doctor" command renders the same results without a
//     daemon.
package preflight
