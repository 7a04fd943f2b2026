// Package timer provides single-shot countdowns keyed by device and purpose.
//
// A Scheduler holds at most one live timer per Key. Arming a key that is
// already armed replaces the old timer, and the replaced timer never
// delivers its expiry, even if it was already due when Arm ran. Expiry
// callbacks receive the Handle they were armed with, so a consumer that
// keeps the latest Handle can discard anything stale.
//
// # Thread Safety
//
// All Scheduler methods are safe for concurrent use. Callbacks run on their
// own goroutine with no Scheduler lock held.
package timer
