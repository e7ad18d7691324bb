// Package audit records changes to the shared template library.
//
// Each import or delete made through the CLI appends an audit_logs row
// naming what changed and where the change came from. Rule executions are
// not recorded here.
package audit
