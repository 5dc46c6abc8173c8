// Package cmdexec runs external tools such as rsync and data-root probes.
//
// Runner is the seam used by tests; OSRunner streams output line by line,
// splitting on carriage returns as well as newlines, and interrupts the child
// with SIGINT when the context is cancelled.
package cmdexec
