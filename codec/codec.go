// Package codec encodes the typed payloads carried inside a
// network.Frame (spec.md §6's NetworkMessage/SumeragiMessage sum
// types). It wraps encoding/json with an explicit version prefix so a
// future wire revision can be introduced without breaking peers still
// running the prior one: Marshal stamps the payload with
// CurrentVersion, Unmarshal refuses to decode a payload stamped with a
// version it does not recognize rather than silently misreading it.
package codec

import (
	"encoding/json"
	"fmt"
)

// Version identifies the wire encoding a payload was written with.
type Version uint16

const (
	// CurrentVersion is the only version this build can produce, and
	// the only one it will accept on Unmarshal.
	CurrentVersion Version = 1
)

// WireCodec marshals/unmarshals SumeragiMessage, BlockSyncMessage,
// TransactionGossip, and PeersGossip payloads for transmission inside
// a network.Frame.
var WireCodec = &versionedJSON{}

type versionedJSON struct{}

// envelope is what actually goes over the wire: the version tag
// followed by the JSON encoding of the caller's value.
type envelope struct {
	Version Version         `json:"v"`
	Body    json.RawMessage `json:"b"`
}

// Marshal encodes v under CurrentVersion.
func (c *versionedJSON) Marshal(v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal body: %w", err)
	}
	return json.Marshal(envelope{Version: CurrentVersion, Body: body})
}

// Unmarshal decodes data into v, rejecting a payload stamped with a
// version this build does not understand.
func (c *versionedJSON) Unmarshal(data []byte, v interface{}) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("codec: malformed envelope: %w", err)
	}
	if env.Version != CurrentVersion {
		return fmt.Errorf("codec: unsupported wire version %d (this build speaks %d)", env.Version, CurrentVersion)
	}
	return json.Unmarshal(env.Body, v)
}
