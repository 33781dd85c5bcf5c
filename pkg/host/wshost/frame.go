package wshost

import "github.com/vango-dev/domafic/pkg/vdom"

// Op names sent to the client.
const (
	OpMount      = "mount"
	OpCreate     = "create"
	OpText       = "text"
	OpInsert     = "insert"
	OpMove       = "move"
	OpRemove     = "remove"
	OpSetAttr    = "setAttr"
	OpRemoveAttr = "removeAttr"
	OpListen     = "listen"
	OpUnlisten   = "unlisten"
	OpRelease    = "release"
	OpTitle      = "title"
)

// Op is a single document change. Zero-valued fields are omitted on the
// wire; the client reads a missing index as 0.
type Op struct {
	Op       string `json:"op"`
	ID       uint32 `json:"id,omitempty"`
	Parent   uint32 `json:"parent,omitempty"`
	Index    int    `json:"index,omitempty"`
	From     int    `json:"from,omitempty"`
	To       int    `json:"to,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Text     string `json:"text,omitempty"`
	Selector string `json:"selector,omitempty"`
	Key      string `json:"key,omitempty"`
	Value    string `json:"value,omitempty"`
	Event    string `json:"event,omitempty"`
	Listener uint32 `json:"listener,omitempty"`
}

// OpsFrame is the server-to-client frame carrying the changes of one
// reconciliation pass, in order.
type OpsFrame struct {
	Ops []Op `json:"ops"`
}

// EventFrame is the client-to-server frame reporting that a listener fired.
type EventFrame struct {
	Listener uint32     `json:"listener"`
	Event    vdom.Event `json:"event"`
}
