package events

import (
	"encoding/json"
	"time"
)

const (
	LeadCreated       = "lead_created"
	LeadUpdated       = "lead_updated"
	DiscoveryFinished = "discovery_finished"
	ScoringFinished   = "scoring_finished"
	OutreachFinished  = "outreach_finished"
	RepliesChecked    = "replies_checked"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	return string(encode(reqID, typ, v, time.Now().UTC(), data))
}

func encode(reqID, typ string, v int, at time.Time, data any) []byte {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        at,
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return b
}
