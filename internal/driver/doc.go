// Package driver is the core's view of the scanner hardware.
//
// The vendor driver runs inside a separate scanner gateway process that
// owns the USB devices. The gateway and the core talk over MQTT:
//
//	autoscan/gateway/{gateway_id}/scan               gateway → core
//	autoscan/gateway/{gateway_id}/pnp                gateway → core
//	autoscan/gateway/{gateway_id}/devices            gateway → core (retained)
//	autoscan/gateway/{gateway_id}/command/{scanner}  core → gateway
//
// Gateway implements the Driver interface on top of those topics. Scan
// messages are delivered at least once, so Gateway drops repeats of a
// message ID it has seen within the dedupe window.
//
// # Thread Safety
//
// Gateway is safe for concurrent use. Scan and PnP callbacks run on the
// MQTT client's delivery goroutine and must not block.
package driver
