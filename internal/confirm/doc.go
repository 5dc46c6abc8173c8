// Package confirm implements the operator confirmation gate consulted before a
// resource's services are stopped.
//
// Unattended runs (--yes, --resume, or input that is not a terminal) are
// approved without blocking so a detached process never hangs on a prompt.
package confirm
