// Package feedback turns named notifications into beeps and LED flashes.
//
// Each notification in the table may carry a beep pattern and an LED
// on/off pair with a hold time. Notify sounds the beep, switches the LED
// on and arms the device's LED-off timer. A device has a single LED-off
// timer, so a newer flash replaces an older one and only the newest
// off-command is sent.
package feedback
