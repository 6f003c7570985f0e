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
)

// ValidDecryptedEvent is a decrypted event for which every field needed to
// render or verify it is known.
type ValidDecryptedEvent struct {
	Type            string         `json:"type"`
	EventID         string         `json:"event_id"`
	ClearContent    spec.RawJSON   `json:"clear_content"`
	PrevContent     spec.RawJSON   `json:"prev_content,omitempty"`
	OriginServerTS  spec.Timestamp `json:"origin_server_ts"`
	CryptoSenderKey string         `json:"crypto_sender_key"`
	RoomID          string         `json:"room_id"`
	Unsigned        spec.RawJSON   `json:"unsigned,omitempty"`
	Redacts         string         `json:"redacts,omitempty"`
	Algorithm       string         `json:"algorithm"`
}

// CacheCost is used by the cache to size entries.
func (e *ValidDecryptedEvent) CacheCost() int64 {
	return int64(len(e.Type) + len(e.EventID) + len(e.ClearContent) + len(e.PrevContent) +
		8 + len(e.CryptoSenderKey) + len(e.RoomID) + len(e.Unsigned) + len(e.Redacts) + len(e.Algorithm))
}

// Copy returns a deep copy of e.
func (e *ValidDecryptedEvent) Copy() *ValidDecryptedEvent {
	if e == nil {
		return nil
	}
	c := *e
	c.ClearContent = CopyRawJSON(e.ClearContent)
	c.PrevContent = CopyRawJSON(e.PrevContent)
	c.Unsigned = CopyRawJSON(e.Unsigned)
	return &c
}
