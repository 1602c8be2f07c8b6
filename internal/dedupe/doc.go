// Package dedupe provides a generic time-windowed cache used to suppress
// repeated notifications for the same key within a configurable window.
package dedupe
