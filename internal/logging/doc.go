// Package logging assembles structured slog loggers and formatting helpers used
// across relocate.
//
// Every record is written to two sinks: the operator's terminal and a durable
// append-only log file. The first failed terminal write (a hung-up SSH session
// or closed pty) detaches the terminal for the rest of the process while the
// file keeps receiving records. Context helpers tag lines with the run
// identifier and the resource being migrated.
package logging
