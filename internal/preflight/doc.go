// Package preflight provides readiness checks for the directories and
// services recast depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs each failure with its
//     remediation before accepting queue work.
//   - The CLI "recast status" command renders individual check results
//     alongside dependency and daemon state.
//
// Directory checks create missing directories before testing access, so a
// first run on a fresh machine passes without manual setup.
package preflight
