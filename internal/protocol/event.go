package protocol

// Event kinds.
const (
	KindStart   = "START"
	KindVisit   = "VISIT"
	KindPath    = "PATH"
	KindMove    = "MOVE"
	KindCollect = "COLLECT"
	KindDeliver = "DELIVER"
	KindError   = "ERROR"
	KindDone    = "DONE"
)

// EVENT (server -> observer, and one JSONL record per line on disk)
type Event struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Seq             uint64 `json:"seq"`
	Kind            string `json:"kind"`

	Pos    []int    `json:"pos,omitempty"`
	Target []int    `json:"target,omitempty"`
	Path   [][]int  `json:"path,omitempty"`
	Items  []string `json:"items,omitempty"`
	Moves  int      `json:"moves,omitempty"`
	Nodes  int      `json:"nodes,omitempty"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SUBSCRIBE (observer -> server). Kinds filters live events; empty means all.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SinceSeq        uint64   `json:"since_seq,omitempty"`
	Kinds           []string `json:"kinds,omitempty"`
}

// ERROR (server -> observer)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
