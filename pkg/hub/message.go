// Package hub fans JSON messages out to websocket clients over channels.
package hub

import "encoding/json"

// Message is one pre-encoded text frame.
type Message struct {
	Data []byte
}

// NewJSONMessage encodes v as a Message.
func NewJSONMessage(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}
