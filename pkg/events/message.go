// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package events

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Message kinds (the top-level "type" field)
const (
	KindHandshake = "handshake"
	KindEvent     = "event"
	KindCommand   = "cmd"
)

// Event is one game event
type Event struct {
	Type      Type
	Timestamp uint64 // ms since epoch, as sent by the server
	Message   string
	Data      map[string]interface{}
}

// Command is a server → device command, e.g. {"action":"send-nuke"}
type Command struct {
	Action string
	Params map[string]interface{}
}

// Message is a decoded WebSocket message. Exactly one of Event and
// Command is set for the event and cmd kinds.
type Message struct {
	Kind       string
	ClientType string
	Event      *Event
	Command    *Command
}

// wireMessage is the shared JSON/CBOR shape
type wireMessage struct {
	Type       string       `json:"type" cbor:"type"`
	ClientType string       `json:"clientType,omitempty" cbor:"clientType,omitempty"`
	Payload    *wirePayload `json:"payload,omitempty" cbor:"payload,omitempty"`
}

type wirePayload struct {
	Type      string      `json:"type,omitempty" cbor:"type,omitempty"`
	Timestamp uint64      `json:"timestamp,omitempty" cbor:"timestamp,omitempty"`
	Message   string      `json:"message,omitempty" cbor:"message,omitempty"`
	Data      interface{} `json:"data,omitempty" cbor:"data,omitempty"`
	Action    string      `json:"action,omitempty" cbor:"action,omitempty"`
	Params    interface{} `json:"params,omitempty" cbor:"params,omitempty"`
}

// ParseJSON decodes a text frame
func ParseJSON(b []byte) (Message, error) {
	if len(b) == 0 {
		return Message{}, fmt.Errorf("empty message")
	}
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return Message{}, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return fromWire(&w)
}

// ParseCBOR decodes a binary frame
func ParseCBOR(b []byte) (Message, error) {
	if len(b) == 0 {
		return Message{}, fmt.Errorf("empty CBOR payload")
	}
	var w wireMessage
	if err := cbor.Unmarshal(b, &w); err != nil {
		return Message{}, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return fromWire(&w)
}

func fromWire(w *wireMessage) (Message, error) {
	if w.Type == "" {
		return Message{}, fmt.Errorf("missing message type")
	}
	m := Message{Kind: w.Type, ClientType: w.ClientType}

	switch w.Type {
	case KindEvent:
		if w.Payload == nil {
			return Message{}, fmt.Errorf("event without payload")
		}
		data, err := toStringMap(w.Payload.Data)
		if err != nil {
			return Message{}, fmt.Errorf("event data: %w", err)
		}
		m.Event = &Event{
			Type:      ParseType(w.Payload.Type),
			Timestamp: w.Payload.Timestamp,
			Message:   w.Payload.Message,
			Data:      data,
		}

	case KindCommand:
		if w.Payload == nil {
			return Message{}, fmt.Errorf("command without payload")
		}
		params, err := toStringMap(w.Payload.Params)
		if err != nil {
			return Message{}, fmt.Errorf("command params: %w", err)
		}
		m.Command = &Command{Action: w.Payload.Action, Params: params}
	}

	return m, nil
}

func toWire(e *Event) *wireMessage {
	p := &wirePayload{
		Type:      e.Type.String(),
		Timestamp: e.Timestamp,
		Message:   e.Message,
	}
	if len(e.Data) > 0 {
		p.Data = e.Data
	}
	return &wireMessage{Type: KindEvent, Payload: p}
}

// EncodeJSON encodes an event message as JSON
func EncodeJSON(e *Event) ([]byte, error) {
	return json.Marshal(toWire(e))
}

// EncodeCBOR encodes an event message as CBOR
func EncodeCBOR(e *Event) ([]byte, error) {
	return cbor.Marshal(toWire(e))
}

// BuildHandshake creates the JSON handshake sent right after connecting
func BuildHandshake(clientType string) ([]byte, error) {
	if clientType == "" {
		return nil, fmt.Errorf("client type required")
	}
	return json.Marshal(&wireMessage{Type: KindHandshake, ClientType: clientType})
}
