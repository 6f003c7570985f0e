// Copyright 2022 The Matrix.org Foundation C.I.C.
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

package test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/matrix-org/gomatrixserverlib/spec"

	"github.com/matrix-org/eventview/eventview/synctypes"
)

var (
	roomIDCounter = int64(0)
)

// Room builds a timeline of client events for a test room.
type Room struct {
	ID string

	mu            sync.Mutex
	events        []*synctypes.ClientEvent
	memberContent map[string]spec.RawJSON
	depth         int64
}

// NewRoom creates a room that creator has joined.
func NewRoom(t *testing.T, creator *User) *Room {
	t.Helper()
	counter := atomic.AddInt64(&roomIDCounter, 1)
	r := &Room{
		ID:            fmt.Sprintf("!%d:%s", counter, serverName),
		memberContent: make(map[string]spec.RawJSON),
	}
	r.CreateAndInsert(t, creator, spec.MRoomCreate, map[string]interface{}{
		"creator":      creator.ID,
		"room_version": "10",
	}, WithStateKey(""))
	r.Membership(t, creator, creator, spec.Join)
	return r
}

// Membership changes the membership of target, with prev_content set to
// target's previous member content in this room.
func (r *Room) Membership(t *testing.T, sender, target *User, membership string, mods ...eventModifier) *synctypes.ClientEvent {
	t.Helper()
	content := map[string]interface{}{
		"membership": membership,
	}
	if membership == spec.Join {
		content["displayname"] = target.DisplayName
		content["avatar_url"] = target.AvatarURL
	}
	r.mu.Lock()
	prev := r.memberContent[target.ID]
	r.mu.Unlock()
	if prev != nil {
		mods = append([]eventModifier{WithPrevContent(prev)}, mods...)
	}
	return r.CreateAndInsert(t, sender, spec.MRoomMember, content, append([]eventModifier{WithStateKey(target.ID)}, mods...)...)
}

// Encrypted adds an m.room.encrypted event sent by sender. The clear
// content is attached as if the crypto layer had decrypted it.
func (r *Room) Encrypted(t *testing.T, sender *User, clearType string, clearContent, relatesTo interface{}, mods ...eventModifier) *synctypes.ClientEvent {
	t.Helper()
	content := map[string]interface{}{
		"algorithm":  MegolmAlgorithm,
		"ciphertext": "AwgAEnAC",
		"device_id":  "DEVICE",
		"session_id": "session",
	}
	if relatesTo != nil {
		content["m.relates_to"] = relatesTo
	}
	mods = append([]eventModifier{WithDecryption(t, clearType, clearContent, sender.DeviceKey)}, mods...)
	return r.CreateAndInsert(t, sender, synctypes.MRoomEncrypted, content, mods...)
}

// CreateEvent builds an event in this room without adding it to the timeline.
func (r *Room) CreateEvent(t *testing.T, sender *User, eventType string, content interface{}, mods ...eventModifier) *synctypes.ClientEvent {
	t.Helper()
	depth := atomic.AddInt64(&r.depth, 1)
	ts := spec.Timestamp(1_600_000_000_000 + depth)
	mod := &eventMods{
		originServerTS: &ts,
	}
	for _, m := range mods {
		m(mod)
	}
	return &synctypes.ClientEvent{
		Type:           eventType,
		EventID:        fmt.Sprintf("$%s_%d", r.ID[1:], depth),
		RoomID:         r.ID,
		Sender:         sender.ID,
		StateKey:       mod.stateKey,
		Content:        MustMarshal(t, content),
		PrevContent:    MustMarshal(t, mod.prevContent),
		Unsigned:       MustMarshal(t, mod.unsigned),
		OriginServerTS: mod.originServerTS,
		Redacts:        mod.redacts,
		Decryption:     mod.decryption,
	}
}

// CreateAndInsert builds an event and appends it to the timeline.
func (r *Room) CreateAndInsert(t *testing.T, sender *User, eventType string, content interface{}, mods ...eventModifier) *synctypes.ClientEvent {
	t.Helper()
	ev := r.CreateEvent(t, sender, eventType, content, mods...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if ev.Type == spec.MRoomMember && ev.StateKey != nil {
		r.memberContent[*ev.StateKey] = ev.Content
	}
	return ev
}

// Events returns the timeline of the room, oldest first.
func (r *Room) Events() []*synctypes.ClientEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*synctypes.ClientEvent(nil), r.events...)
}
