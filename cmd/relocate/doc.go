// Command relocate moves service data directories to new storage.
//
// Running relocate without a subcommand migrates every configured resource in
// order. Progress is recorded in the ledger, so `relocate --resume` picks up an
// interrupted or failed run at the first step that did not finish. The status,
// history and ledger subcommands inspect that state without changing the host.
package main
