// Package host links the bridge to its host process over MQTT.
//
// Outbound, the link implements controller.Host (node add/remove, notices)
// and report.Sender (direct status messages). Inbound, it decodes host
// events and hands them to a Handler, normally the controller.
//
// Message shapes are defined in messages.go; topics come from
// mqtt.Topics under the configured host prefix.
package host
