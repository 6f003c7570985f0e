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

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/matrix-org/eventview/eventview/storage/tables"
	"github.com/matrix-org/eventview/eventview/synctypes"
	"github.com/matrix-org/eventview/internal"
	"github.com/matrix-org/eventview/internal/sqlutil"
)

const eventsSchema = `
CREATE SEQUENCE IF NOT EXISTS eventview_event_id_seq;

-- Stores client events as they were received.
CREATE TABLE IF NOT EXISTS eventview_events (
	-- The order in which events were stored
	id BIGINT PRIMARY KEY DEFAULT nextval('eventview_event_id_seq'),
	event_id TEXT NOT NULL CONSTRAINT eventview_event_id_idx UNIQUE,
	room_id TEXT NOT NULL,
	type TEXT NOT NULL,
	-- NULL for non-state events
	state_key TEXT,
	sender TEXT NOT NULL,
	event_json TEXT NOT NULL
);
`

const addRoomMemberIndexSQL = "" +
	"CREATE INDEX IF NOT EXISTS eventview_events_room_member_idx ON eventview_events (room_id, type, state_key);"

const insertEventSQL = "" +
	"INSERT INTO eventview_events (event_id, room_id, type, state_key, sender, event_json)" +
	" VALUES ($1, $2, $3, $4, $5, $6)" +
	" ON CONFLICT ON CONSTRAINT eventview_event_id_idx DO NOTHING"

const selectEventsSQL = "" +
	"SELECT event_json FROM eventview_events WHERE event_id = ANY($1)"

const selectLatestMemberEventsSQL = "" +
	"SELECT DISTINCT ON (state_key) event_json FROM eventview_events" +
	" WHERE room_id = $1 AND type = 'm.room.member' AND state_key IS NOT NULL" +
	" ORDER BY state_key ASC, id DESC"

type eventsStatements struct {
	insertEventStmt              *sql.Stmt
	selectEventsStmt             *sql.Stmt
	selectLatestMemberEventsStmt *sql.Stmt
}

func NewPostgresEventsTable(ctx context.Context, db *sql.DB) (tables.Events, error) {
	s := &eventsStatements{}
	_, err := db.Exec(eventsSchema)
	if err != nil {
		return nil, err
	}
	m := sqlutil.NewMigrator(db)
	m.AddMigrations(sqlutil.Migration{
		Version: "eventview: add room member index",
		Up: func(ctx context.Context, txn *sql.Tx) error {
			_, err := txn.ExecContext(ctx, addRoomMemberIndexSQL)
			return err
		},
	})
	if err = m.Up(ctx); err != nil {
		return nil, err
	}
	return s, sqlutil.StatementList{
		{&s.insertEventStmt, insertEventSQL},
		{&s.selectEventsStmt, selectEventsSQL},
		{&s.selectLatestMemberEventsStmt, selectLatestMemberEventsSQL},
	}.Prepare(db)
}

func (s *eventsStatements) InsertEvent(
	ctx context.Context, txn *sql.Tx, event *synctypes.ClientEvent,
) (bool, error) {
	eventJSON, err := tables.MarshalEvent(event)
	if err != nil {
		return false, fmt.Errorf("tables.MarshalEvent: %w", err)
	}
	res, err := sqlutil.TxStmt(txn, s.insertEventStmt).ExecContext(
		ctx, event.EventID, event.RoomID, event.Type, event.StateKey, event.Sender, eventJSON,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (s *eventsStatements) SelectEvents(
	ctx context.Context, txn *sql.Tx, eventIDs []string,
) ([]*synctypes.ClientEvent, error) {
	rows, err := sqlutil.TxStmt(txn, s.selectEventsStmt).QueryContext(ctx, pq.StringArray(eventIDs))
	if err != nil {
		return nil, err
	}
	defer internal.CloseAndLogIfError(ctx, rows, "SelectEvents: rows.close() failed")
	return scanEvents(rows)
}

func (s *eventsStatements) SelectLatestMemberEvents(
	ctx context.Context, txn *sql.Tx, roomID string,
) ([]*synctypes.ClientEvent, error) {
	rows, err := sqlutil.TxStmt(txn, s.selectLatestMemberEventsStmt).QueryContext(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer internal.CloseAndLogIfError(ctx, rows, "SelectLatestMemberEvents: rows.close() failed")
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*synctypes.ClientEvent, error) {
	var events []*synctypes.ClientEvent
	var eventJSON []byte
	for rows.Next() {
		if err := rows.Scan(&eventJSON); err != nil {
			return nil, err
		}
		ev, err := tables.UnmarshalEvent(eventJSON)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
