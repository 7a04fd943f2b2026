// Package scanner pairs location and identifier scans per device.
//
// A Service owns one event channel fed by the driver callbacks and a single
// dispatcher goroutine reading it. Scans are routed by their leading prefix
// character to a Device in the Registry; every Device has its own bounded
// queue and worker goroutine, so a slow inventory update only holds up the
// device that issued it.
//
// Inside the worker each scan is classified and passed to Transition, a pure
// function that decides the outcome, the new pending scan and what to do
// with the scan-timeout timer. Completed pairs go to the inventory client
// synchronously; feedback for the device waits for the result.
//
// Attach and detach events rebuild the whole registry through the
// Configurator. The driver cannot tell which device went away, so every
// pending scan, timer and worker is discarded and prefixes are handed out
// again from the configured base.
package scanner
