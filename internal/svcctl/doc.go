// Package svcctl stops, starts and inspects the services that own a resource.
//
// Systemd talks to the system bus through a narrow DBusAPI interface so tests
// can substitute a stub. Stopping a stopped unit and starting a running unit
// are successful no-ops, which keeps the corresponding migration steps
// idempotent. DataRootProbe asks a live service where its data lives.
package svcctl
