package mqtt

import "fmt"

// TopicPrefix is the root of every autoscan topic.
const TopicPrefix = "autoscan"

// Topics builds the service-level topics. Gateway topics live with the
// gateway driver.
type Topics struct{}

// ServiceStatus returns the retained online/offline topic for a client.
//
// Example: autoscan/service/autoscand/status
func (Topics) ServiceStatus(clientID string) string {
	return fmt.Sprintf("%s/service/%s/status", TopicPrefix, clientID)
}

// AllServiceStatus matches the status topic of every service.
func (Topics) AllServiceStatus() string {
	return TopicPrefix + "/service/+/status"
}

// AllGateway matches every topic of one gateway.
func (Topics) AllGateway(gatewayID string) string {
	return fmt.Sprintf("%s/gateway/%s/#", TopicPrefix, gatewayID)
}
