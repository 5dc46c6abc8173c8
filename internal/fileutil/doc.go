// Package fileutil holds the host filesystem primitives used while moving a
// resource: measuring trees, free space, symlink checks, ownership mirroring,
// verified backups and atomic replacement of small configuration files.
package fileutil
