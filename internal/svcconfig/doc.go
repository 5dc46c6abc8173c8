// Package svcconfig repoints a service's data-root setting in its JSON or TOML
// configuration file.
//
// Rewrites round-trip the document through a generic map, so comments and key
// order in the original file are not preserved; the timestamped backup keeps
// the original text.
package svcconfig
