// Package runlock keeps a single relocate process in charge of the ledger.
package runlock
