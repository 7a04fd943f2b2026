// Package mqtt connects autoscand to the MQTT broker it shares with the
// scanner gateway.
//
// The client reconnects on its own and restores subscriptions after a
// reconnect. A retained status message on
// autoscan/service/{client_id}/status says whether the service is online;
// the broker publishes the offline variant as the last will if the
// connection drops without a clean Close.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("autoscan/gateway/gw-001/scan", 1,
//	    func(topic string, payload []byte) error {
//	        return handle(payload)
//	    })
//
// Handlers run on paho's delivery goroutine. A panic in a handler is
// recovered and logged.
package mqtt
