// Package logs reads the durable relocate log for the `relocate logs`
// command.
//
// Reads only consume complete lines, so a record that is still being written
// is picked up whole on the next poll. Follow mode restarts from the top when
// the file shrinks, which covers truncation by logrotate's copytruncate.
package logs
