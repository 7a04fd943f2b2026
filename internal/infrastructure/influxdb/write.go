package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementScans = "scans"
	MeasurementPairs = "pair_attempts"
)

// WriteScan records one classified scan and what it did to the device's
// pending state.
//
//	scans,device_id=7,prefix=A,kind=identifier,outcome=stored count=1i
func (c *Client) WriteScan(deviceID uint32, prefix, kind, outcome string) {
	c.WritePoint(MeasurementScans,
		map[string]string{
			"device_id": strconv.FormatUint(uint64(deviceID), 10),
			"prefix":    prefix,
			"kind":      kind,
			"outcome":   outcome,
		},
		map[string]any{"count": 1},
	)
}

// WritePairAttempt records one inventory update.
//
// Parameters:
//   - deviceID: Scanner that completed the pair
//   - result: History result category (ok, refused, failed, not_connected)
//   - exitStatus: Remote updater exit status, -1 when none was received
//   - duration: Time from the start of the update to its result
//
// The point is dropped silently while the client is disconnected.
func (c *Client) WritePairAttempt(deviceID uint32, result string, exitStatus int, duration time.Duration) {
	c.WritePoint(MeasurementPairs,
		map[string]string{
			"device_id": strconv.FormatUint(uint64(deviceID), 10),
			"result":    result,
		},
		map[string]any{
			"exit_status": exitStatus,
			"duration_ms": float64(duration) / float64(time.Millisecond),
		},
	)
}

// WritePoint writes a point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
