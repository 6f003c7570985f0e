// Copyright 2021 The Matrix.org Foundation C.I.C.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package synctypes

import (
	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/tidwall/gjson"
)

// MRoomEncrypted is the event type of an encrypted room event.
const MRoomEncrypted = "m.room.encrypted"

// ClientEvent is an event as a client sees it after /sync, optionally
// carrying the result of decrypting it. It is treated as immutable: nothing
// in this module writes to a ClientEvent once it has been decoded.
type ClientEvent struct {
	Content        spec.RawJSON    `json:"content"`
	PrevContent    spec.RawJSON    `json:"prev_content,omitempty"`
	EventID        string          `json:"event_id,omitempty"`
	OriginServerTS *spec.Timestamp `json:"origin_server_ts,omitempty"`
	RoomID         string          `json:"room_id,omitempty"`
	Sender         string          `json:"sender,omitempty"`
	StateKey       *string         `json:"state_key,omitempty"`
	Type           string          `json:"type"`
	Unsigned       spec.RawJSON    `json:"unsigned,omitempty"`
	Redacts        string          `json:"redacts,omitempty"`

	// Decryption is filled in by the crypto layer once the event has been
	// decrypted. It is never set for events received in the clear.
	Decryption *DecryptionResult `json:"decryption,omitempty"`
}

// DecryptionResult is what the crypto layer hands back after decrypting an
// m.room.encrypted event.
type DecryptionResult struct {
	// Payload is the decrypted JSON, normally {"type", "content", "room_id"}.
	Payload spec.RawJSON `json:"payload"`
	// SenderKey is the Curve25519 key of the device that sent the event.
	SenderKey string `json:"sender_key,omitempty"`
	// KeysClaimed holds the keys the sender claimed to own, e.g. ed25519.
	KeysClaimed map[string]string `json:"keys_claimed,omitempty"`
	// ForwardingCurve25519KeyChain lists the devices a forwarded room key
	// passed through.
	ForwardingCurve25519KeyChain []string `json:"forwarding_curve25519_key_chain,omitempty"`
}

// IsEncrypted returns true if this is an m.room.encrypted event.
func (e *ClientEvent) IsEncrypted() bool {
	return e.Type == MRoomEncrypted
}

// DecryptedContent returns a copy of the clear content of the event, if the
// event has been decrypted and its payload carries a content object.
func (e *ClientEvent) DecryptedContent() (spec.RawJSON, bool) {
	if e.Decryption == nil {
		return nil, false
	}
	content := gjson.GetBytes(e.Decryption.Payload, "content")
	if !content.IsObject() {
		return nil, false
	}
	return spec.RawJSON(content.Raw), true
}

// DecryptedType returns the clear event type of a decrypted event.
func (e *ClientEvent) DecryptedType() (string, bool) {
	if e.Decryption == nil {
		return "", false
	}
	typ := gjson.GetBytes(e.Decryption.Payload, "type")
	if typ.Type != gjson.String {
		return "", false
	}
	return typ.Str, true
}

// SenderKey returns the Curve25519 key of the sending device as reported by
// the decryption result. The unauthenticated sender_key of the encrypted
// content is not consulted.
func (e *ClientEvent) SenderKey() (string, bool) {
	if e.Decryption == nil || e.Decryption.SenderKey == "" {
		return "", false
	}
	return e.Decryption.SenderKey, true
}

// ResolvedPrevContent returns the content this state event replaced. A
// prev_content attached under unsigned by the server takes precedence over
// the top-level field. Returns nil when neither is present.
func (e *ClientEvent) ResolvedPrevContent() spec.RawJSON {
	if prev := gjson.GetBytes(e.Unsigned, "prev_content"); prev.IsObject() {
		return spec.RawJSON(prev.Raw)
	}
	if IsPresent(e.PrevContent) {
		return e.PrevContent
	}
	return nil
}

// IsPresent reports whether a raw JSON field holds a value other than null.
func IsPresent(raw spec.RawJSON) bool {
	if len(raw) == 0 {
		return false
	}
	return gjson.ParseBytes(raw).Type != gjson.Null
}

// CopyRawJSON returns a copy of raw that shares no memory with it, or nil
// if raw holds no value.
func CopyRawJSON(raw spec.RawJSON) spec.RawJSON {
	if !IsPresent(raw) {
		return nil
	}
	return append(spec.RawJSON(nil), raw...)
}
