// Package ledger persists which migration steps have completed.
//
// The ledger is a plain text file with one step identifier per line. Entries
// are appended and fsynced before the completion is logged, so a crash leaves
// either the whole line or a torn tail that is ignored on the next load. The
// running process never removes entries; Clear exists only for the operator
// cleanup command.
package ledger
