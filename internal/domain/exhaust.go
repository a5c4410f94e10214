package domain

import "time"

// OtcExhaustInfo records when a one-time (or long-term) card became
// unusable. The key itself is kept around for a grace period to tolerate
// in-flight messages, then deleted by the rotation engine.
type OtcExhaustInfo struct {
	CardID      string    `json:"identifier"`
	ExhaustDate time.Time `json:"exhaust_date"`
}

// SessionExhaustInfo records when a session was marked for removal.
type SessionExhaustInfo struct {
	SessionID   []byte    `json:"identifier"`
	CardID      string    `json:"card_id"`
	ExhaustDate time.Time `json:"exhaust_date"`
}

// ExhaustInfo is the full per-identity exhaustion ledger.
type ExhaustInfo struct {
	Otc      []OtcExhaustInfo     `json:"otc"`
	Ltc      []OtcExhaustInfo     `json:"ltc"`
	Sessions []SessionExhaustInfo `json:"sessions"`
}
