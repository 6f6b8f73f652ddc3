package mqtt

import "strings"

// Host link message kinds, bridge → host.
const (
	OutAddNode    = "addnode"
	OutRemoveNode = "removenode"
	OutStatus     = "status"
	OutNotices    = "notices"
)

// Host link message kinds, host → bridge.
const (
	InCustomParams = "customparams"
	InStart        = "start"
	InAddNodeDone  = "addnodedone"
	InPoll         = "poll"
	InStop         = "stop"
	InCommand      = "command"
)

// Topics builds host link topics under a fixed prefix.
//
//	topics := mqtt.NewTopics("goveebridge/host")
//	topics.Out(mqtt.OutStatus) // "goveebridge/host/out/status"
type Topics struct {
	prefix string
}

// NewTopics returns a builder rooted at prefix. Trailing slashes are dropped.
func NewTopics(prefix string) Topics {
	return Topics{prefix: strings.TrimRight(prefix, "/")}
}

// Prefix returns the root of every topic.
func (t Topics) Prefix() string { return t.prefix }

// Availability returns the retained online/offline topic, also used as LWT.
func (t Topics) Availability() string {
	return t.prefix + "/availability"
}

// Out returns the topic for a bridge → host message kind.
func (t Topics) Out(kind string) string {
	return t.prefix + "/out/" + kind
}

// In returns the topic for a host → bridge message kind.
func (t Topics) In(kind string) string {
	return t.prefix + "/in/" + kind
}

// AllInbound returns a single-level wildcard over every inbound kind.
func (t Topics) AllInbound() string {
	return t.prefix + "/in/+"
}

// InboundKind extracts the message kind from an inbound topic.
// It returns "" if topic is not an inbound topic under this prefix.
func (t Topics) InboundKind(topic string) string {
	kind, ok := strings.CutPrefix(topic, t.prefix+"/in/")
	if !ok || kind == "" || strings.Contains(kind, "/") {
		return ""
	}
	return kind
}
