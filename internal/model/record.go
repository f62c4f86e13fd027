package model

import "time"

// ActionType is the user-facing semantic kind of a logged action.
// The chain has no notion of "stake" vs a plain transfer for our
// program, so this only ever comes from the local log.
type ActionType string

const (
	ActionSend    ActionType = "send"
	ActionReceive ActionType = "receive"
	ActionSwap    ActionType = "swap"
	ActionPresale ActionType = "presale"
	ActionStake   ActionType = "stake"
	ActionUnstake ActionType = "unstake"
	ActionClaim   ActionType = "claim"
)

// RecordStatus is the settlement state of a logged action.
type RecordStatus string

const (
	StatusPending   RecordStatus = "pending"
	StatusCompleted RecordStatus = "completed"
	StatusFailed    RecordStatus = "failed"
)

// Record is one entry of the local transaction log. Signature is empty
// while the action is pending and set once the transaction is sent.
type Record struct {
	Type      ActionType   `json:"type"`
	From      string       `json:"from,omitempty"`
	To        string       `json:"to,omitempty"`
	Amount    string       `json:"amount"`
	Currency  string       `json:"currency"`
	Signature string       `json:"signature,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Status    RecordStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
}

// ChainEntry is one settled transaction as reported by the ledger.
// Authoritative for status, fee and block time.
type ChainEntry struct {
	Signature string     `json:"signature"`
	Slot      uint64     `json:"slot"`
	BlockTime *time.Time `json:"blockTime,omitempty"`
	FeeSOL    string     `json:"feeSOL"`
	Failed    bool       `json:"failed"`
}

// HistoryItem is the merged view of a chain entry and a local record.
type HistoryItem struct {
	Type      ActionType   `json:"type"`
	From      string       `json:"from,omitempty"`
	To        string       `json:"to,omitempty"`
	Amount    string       `json:"amount,omitempty"`
	Currency  string       `json:"currency,omitempty"`
	Signature string       `json:"signature,omitempty"`
	FeeSOL    string       `json:"feeSOL,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Status    RecordStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
}
