// Package signals turns process signals into cooperative cancellation so a
// migration only ever stops between recorded steps.
package signals
