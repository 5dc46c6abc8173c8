// Package datasync wraps rsync as the bulk copy primitive.
//
// Copies are additive and resumable: repeated runs converge on the source
// contents without deleting anything at the destination, and partially
// transferred files are kept when the process is interrupted.
package datasync
