package driver

import "strconv"

const topicRoot = "autoscan/gateway/"

// Topics builds the MQTT topics for one gateway.
type Topics struct {
	GatewayID string
}

func (t Topics) base() string {
	return topicRoot + t.GatewayID
}

// Scan returns the topic scans are published on.
func (t Topics) Scan() string {
	return t.base() + "/scan"
}

// PnP returns the attach/detach topic.
func (t Topics) PnP() string {
	return t.base() + "/pnp"
}

// Devices returns the retained device list topic.
func (t Topics) Devices() string {
	return t.base() + "/devices"
}

// Command returns the command topic for one scanner.
func (t Topics) Command(scannerID uint32) string {
	return t.base() + "/command/" + strconv.FormatUint(uint64(scannerID), 10)
}

// Health returns the topic the core publishes its health on.
func (t Topics) Health() string {
	return t.base() + "/health"
}
