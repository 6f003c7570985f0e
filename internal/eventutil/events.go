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

package eventutil

import (
	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/matrix-org/eventview/eventview/synctypes"
)

// The relation travels in the clear next to the ciphertext, so it is never
// part of the decrypted payload.
const relatesToPath = `m\.relates_to`

// FixedRoomMemberContent decodes the content of an m.room.member event. If
// the user has left the room, their display name and avatar are taken from
// the content the event replaced so that the leave still renders with the
// name the user had while they were in the room.
//
// Returns nil if the content is not valid member content.
func FixedRoomMemberContent(ev *synctypes.ClientEvent) *synctypes.RoomMemberContent {
	content, err := synctypes.NewRoomMemberContent(ev.Content)
	if err != nil {
		return nil
	}
	if !content.Membership.IsLeft() {
		return content
	}
	fixed := *content
	fixed.DisplayName, fixed.AvatarURL = nil, nil
	if prev, err := synctypes.NewRoomMemberContent(ev.ResolvedPrevContent()); err == nil {
		fixed.DisplayName = prev.DisplayName
		fixed.AvatarURL = prev.AvatarURL
	}
	return &fixed
}

// ToValidDecryptedEvent builds a ValidDecryptedEvent from an encrypted event
// that the crypto layer has already decrypted. Returns nil if the event is not
// encrypted, has not been decrypted, or is missing any of the event ID, room
// ID, clear type, sender key or algorithm.
func ToValidDecryptedEvent(ev *synctypes.ClientEvent) *synctypes.ValidDecryptedEvent {
	if !ev.IsEncrypted() {
		return nil
	}
	decryptedContent, ok := ev.DecryptedContent()
	if !ok {
		return nil
	}
	if ev.EventID == "" || ev.RoomID == "" {
		return nil
	}
	typ, ok := ev.DecryptedType()
	if !ok {
		return nil
	}
	senderKey, ok := ev.SenderKey()
	if !ok {
		return nil
	}
	algorithm := gjson.GetBytes(ev.Content, "algorithm")
	if algorithm.Type != gjson.String {
		return nil
	}

	clearContent, err := withClearRelation(decryptedContent, ev.Content)
	if err != nil {
		return nil
	}
	var ts spec.Timestamp
	if ev.OriginServerTS != nil {
		ts = *ev.OriginServerTS
	}
	return &synctypes.ValidDecryptedEvent{
		Type:            typ,
		EventID:         ev.EventID,
		ClearContent:    clearContent,
		PrevContent:     synctypes.CopyRawJSON(ev.PrevContent),
		OriginServerTS:  ts,
		CryptoSenderKey: senderKey,
		RoomID:          ev.RoomID,
		Unsigned:        synctypes.CopyRawJSON(ev.Unsigned),
		Redacts:         ev.Redacts,
		Algorithm:       algorithm.Str,
	}
}

// withClearRelation copies m.relates_to from the encrypted content into the
// decrypted content. Without a relation on the encrypted side the decrypted
// content is returned as is. The decrypted content is always a fresh copy so
// sjson is free to modify it.
func withClearRelation(decrypted, encrypted spec.RawJSON) (spec.RawJSON, error) {
	relation := gjson.GetBytes(encrypted, relatesToPath)
	if !relation.Exists() || relation.Type == gjson.Null {
		return decrypted, nil
	}
	return sjson.SetRawBytes(decrypted, relatesToPath, []byte(relation.Raw))
}
