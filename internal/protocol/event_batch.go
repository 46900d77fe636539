package protocol

// EVENT_BATCH (server -> observer) carries the backlog requested by
// SubscribeMsg.SinceSeq before live events start.
type EventBatchMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	RunID           string  `json:"run_id,omitempty"`
	Events          []Event `json:"events"`
	NextSeq         uint64  `json:"next_seq"`
}
