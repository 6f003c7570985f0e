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

package storage

import (
	"context"

	"github.com/matrix-org/eventview/eventview/synctypes"
)

type Database interface {
	// StoreEvent stores the event and, if present, its decryption result.
	// Storing an event ID twice keeps the first event but still records a
	// newer decryption result. Returns true if the event was new.
	StoreEvent(ctx context.Context, event *synctypes.ClientEvent) (bool, error)
	// Event returns the event with its decryption result attached, or nil if
	// the event is unknown.
	Event(ctx context.Context, eventID string) (*synctypes.ClientEvent, error)
	// Events returns the known events out of eventIDs, in no particular order.
	Events(ctx context.Context, eventIDs []string) ([]*synctypes.ClientEvent, error)
	// StoreDecryptionResult replaces the decryption result of an event.
	StoreDecryptionResult(ctx context.Context, eventID string, result *synctypes.DecryptionResult) error
	// DecryptionResult returns the decryption result of an event, or nil.
	DecryptionResult(ctx context.Context, eventID string) (*synctypes.DecryptionResult, error)
	// RoomMemberEvents returns the latest m.room.member event of every user
	// known in the room.
	RoomMemberEvents(ctx context.Context, roomID string) ([]*synctypes.ClientEvent, error)
}
