package model

import "encoding/json"

// Turn positions inside a record's conversations array.
const (
	TurnSystem = iota
	TurnHuman
	TurnModel
	TurnCount
)

// Record is one three-turn dialogue from the input sequence.
type Record struct {
	Line   int             `json:"line"`
	System string          `json:"system"`
	Human  string          `json:"human"`
	Model  string          `json:"model"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

// Turns returns the turn texts in conversation order.
func (r Record) Turns() [TurnCount]string {
	return [TurnCount]string{r.System, r.Human, r.Model}
}

// Payload returns the serialized form written to record exports. The
// original JSON object is preferred so unknown fields survive the export.
func (r Record) Payload() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	return json.Marshal(Conversation{Conversations: []Turn{
		{From: "system", Value: r.System},
		{From: "human", Value: r.Human},
		{From: "gpt", Value: r.Model},
	}})
}

// Conversation is the wire shape of an input record.
type Conversation struct {
	Conversations []Turn `json:"conversations"`
}

// Turn is one entry in Conversation.Conversations.
type Turn struct {
	From  string `json:"from,omitempty"`
	Value string `json:"value"`
}
