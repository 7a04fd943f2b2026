// Package influxdb records scan and pairing telemetry in InfluxDB v2.
//
// Every classified scan becomes a point in the "scans" measurement and
// every inventory update a point in "pair_attempts". Writes go through
// the batched non-blocking write API of influxdb-client-go; batch size and
// flush interval come from the influxdb config section.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//	client.WriteScan(7, "A", "identifier", "stored")
package influxdb
