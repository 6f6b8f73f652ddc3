package host

import "github.com/nerrad567/govee-local-bridge/internal/node"

// AddNodeMessage asks the host to create or update a node.
type AddNodeMessage struct {
	Address string        `json:"address"`
	Primary string        `json:"primary"`
	Name    string        `json:"name"`
	NodeDef string        `json:"nodedef"`
	IP      string        `json:"ip,omitempty"`
	Drivers []node.Driver `json:"drivers"`
}

// Node definition IDs the host profile declares.
const (
	NodeDefController = "goveeLocalController"
	NodeDefDevice     = "goveeLocalDevice"
)

func nodeDefFor(kind node.Kind) string {
	if kind == node.KindController {
		return NodeDefController
	}
	return NodeDefDevice
}

// RemoveNodeMessage asks the host to delete a node.
type RemoveNodeMessage struct {
	Address string `json:"address"`
}

// Notice actions.
const (
	NoticeSet   = "set"
	NoticeClear = "clear"
)

// NoticeMessage sets or clears host notices.
type NoticeMessage struct {
	Action string `json:"action"`
	Key    string `json:"key,omitempty"`
	Text   string `json:"text,omitempty"`
}

// AddressEvent is the payload of start and addnodedone events.
type AddressEvent struct {
	Address string `json:"address"`
}

// PollEvent is the payload of a poll event. Type is "shortPoll" or "longPoll".
type PollEvent struct {
	Type string `json:"type"`
}

// CommandEvent is the payload of a node command event.
type CommandEvent struct {
	Address string `json:"address"`
	Command string `json:"cmd"`
}
