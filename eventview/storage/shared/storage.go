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

package shared

import (
	"context"
	"database/sql"

	"github.com/matrix-org/eventview/eventview/storage/tables"
	"github.com/matrix-org/eventview/eventview/synctypes"
	"github.com/matrix-org/eventview/internal/sqlutil"
)

type Database struct {
	DB                     *sql.DB
	Writer                 sqlutil.Writer
	EventsTable            tables.Events
	DecryptionResultsTable tables.DecryptionResults
}

func (d *Database) StoreEvent(ctx context.Context, event *synctypes.ClientEvent) (inserted bool, err error) {
	err = d.Writer.Do(ctx, d.DB, nil, func(txn *sql.Tx) error {
		inserted, err = d.EventsTable.InsertEvent(ctx, txn, event)
		if err != nil {
			return err
		}
		if event.Decryption == nil {
			return nil
		}
		return d.DecryptionResultsTable.UpsertDecryptionResult(ctx, txn, event.EventID, event.Decryption)
	})
	return
}

func (d *Database) Event(ctx context.Context, eventID string) (*synctypes.ClientEvent, error) {
	events, err := d.Events(ctx, []string{eventID})
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return events[0], nil
}

func (d *Database) Events(ctx context.Context, eventIDs []string) ([]*synctypes.ClientEvent, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	events, err := d.EventsTable.SelectEvents(ctx, nil, eventIDs)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return events, nil
	}
	found := make([]string, 0, len(events))
	for _, ev := range events {
		found = append(found, ev.EventID)
	}
	results, err := d.DecryptionResultsTable.SelectDecryptionResults(ctx, nil, found)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		ev.Decryption = results[ev.EventID]
	}
	return events, nil
}

func (d *Database) StoreDecryptionResult(ctx context.Context, eventID string, result *synctypes.DecryptionResult) error {
	return d.Writer.Do(ctx, d.DB, nil, func(txn *sql.Tx) error {
		return d.DecryptionResultsTable.UpsertDecryptionResult(ctx, txn, eventID, result)
	})
}

func (d *Database) DecryptionResult(ctx context.Context, eventID string) (*synctypes.DecryptionResult, error) {
	results, err := d.DecryptionResultsTable.SelectDecryptionResults(ctx, nil, []string{eventID})
	if err != nil {
		return nil, err
	}
	return results[eventID], nil
}

func (d *Database) RoomMemberEvents(ctx context.Context, roomID string) ([]*synctypes.ClientEvent, error) {
	return d.EventsTable.SelectLatestMemberEvents(ctx, nil, roomID)
}
