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

package tables

import (
	"context"
	"database/sql"

	"github.com/matrix-org/eventview/eventview/synctypes"
)

type Events interface {
	// InsertEvent stores the event without its decryption result. Returns
	// false if an event with the same ID was already stored.
	InsertEvent(ctx context.Context, txn *sql.Tx, event *synctypes.ClientEvent) (inserted bool, err error)
	// SelectEvents returns the events with the given IDs. Unknown IDs are skipped.
	SelectEvents(ctx context.Context, txn *sql.Tx, eventIDs []string) ([]*synctypes.ClientEvent, error)
	// SelectLatestMemberEvents returns, for every state key, the most recently
	// stored m.room.member event in the room, ordered by state key.
	SelectLatestMemberEvents(ctx context.Context, txn *sql.Tx, roomID string) ([]*synctypes.ClientEvent, error)
}

type DecryptionResults interface {
	UpsertDecryptionResult(ctx context.Context, txn *sql.Tx, eventID string, result *synctypes.DecryptionResult) error
	SelectDecryptionResults(ctx context.Context, txn *sql.Tx, eventIDs []string) (map[string]*synctypes.DecryptionResult, error)
}
