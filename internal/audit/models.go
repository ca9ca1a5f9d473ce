package audit

import "time"

// Action names an audit event.
type Action string

const (
	ActionCallbackProcessed Action = "kyc_callback_processed"
	ActionCallbackFailed    Action = "kyc_callback_failed"
	ActionCallbackDuplicate Action = "kyc_callback_duplicate"
	ActionPoolLoaded        Action = "pool_addresses_loaded"
	ActionAllotmentSet      Action = "token_allotment_set"
)

// Event is emitted from domain logic. It is transport-agnostic so sinks can
// fan out; the Kafka publisher keys records by TransactionID when present.
type Event struct {
	ID            string            `json:"id"`
	Action        Action            `json:"action"`
	Timestamp     time.Time         `json:"timestamp"`
	RequestID     string            `json:"request_id,omitempty"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Outcome       string            `json:"outcome,omitempty"`
	Address       string            `json:"address,omitempty"`
	TxHash        string            `json:"tx_hash,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	ActorID       string            `json:"actor_id,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}
