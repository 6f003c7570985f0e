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

package sqlite3

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/matrix-org/eventview/eventview/storage/tables"
	"github.com/matrix-org/eventview/eventview/synctypes"
	"github.com/matrix-org/eventview/internal/sqlutil"
)

const decryptionResultsSchema = `
-- Stores the latest decryption result of an encrypted event.
CREATE TABLE IF NOT EXISTS eventview_decryption_results (
  event_id TEXT NOT NULL PRIMARY KEY,
  payload TEXT NOT NULL,
  sender_key TEXT NOT NULL DEFAULT '',
  -- JSON encoded map of key algorithm to key
  keys_claimed TEXT,
  -- JSON encoded string array
  forwarding_chain TEXT
);
`

const upsertDecryptionResultSQL = "" +
	"INSERT INTO eventview_decryption_results (event_id, payload, sender_key, keys_claimed, forwarding_chain)" +
	" VALUES ($1, $2, $3, $4, $5)" +
	" ON CONFLICT (event_id) DO UPDATE SET payload = excluded.payload, sender_key = excluded.sender_key," +
	" keys_claimed = excluded.keys_claimed, forwarding_chain = excluded.forwarding_chain"

const selectDecryptionResultsSQL = "" +
	"SELECT event_id, payload, sender_key, keys_claimed, forwarding_chain FROM eventview_decryption_results" +
	" WHERE event_id IN ($1)"

type decryptionResultsStatements struct {
	db                         *sql.DB
	upsertDecryptionResultStmt *sql.Stmt
}

func NewSqliteDecryptionResultsTable(db *sql.DB) (tables.DecryptionResults, error) {
	s := &decryptionResultsStatements{
		db: db,
	}
	_, err := db.Exec(decryptionResultsSchema)
	if err != nil {
		return nil, err
	}
	return s, sqlutil.StatementList{
		{&s.upsertDecryptionResultStmt, upsertDecryptionResultSQL},
	}.Prepare(db)
}

func (s *decryptionResultsStatements) UpsertDecryptionResult(
	ctx context.Context, txn *sql.Tx, eventID string, result *synctypes.DecryptionResult,
) error {
	keysClaimed, err := json.Marshal(result.KeysClaimed)
	if err != nil {
		return err
	}
	chain, err := json.Marshal(result.ForwardingCurve25519KeyChain)
	if err != nil {
		return err
	}
	_, err = sqlutil.TxStmt(txn, s.upsertDecryptionResultStmt).ExecContext(
		ctx, eventID, string(result.Payload), result.SenderKey, string(keysClaimed), string(chain),
	)
	return err
}

func (s *decryptionResultsStatements) SelectDecryptionResults(
	ctx context.Context, txn *sql.Tx, eventIDs []string,
) (map[string]*synctypes.DecryptionResult, error) {
	params := make([]interface{}, len(eventIDs))
	for i := range eventIDs {
		params[i] = eventIDs[i]
	}
	var qp sqlutil.QueryProvider = s.db
	if txn != nil {
		qp = txn
	}
	results := make(map[string]*synctypes.DecryptionResult, len(eventIDs))
	err := sqlutil.RunLimitedVariablesQuery(
		ctx, selectDecryptionResultsSQL, qp, params, sqlutil.SQLite3MaxVariables,
		func(rows *sql.Rows) error {
			var eventID, payload string
			var keysClaimed, chain sql.NullString
			for rows.Next() {
				result := &synctypes.DecryptionResult{}
				if err := rows.Scan(&eventID, &payload, &result.SenderKey, &keysClaimed, &chain); err != nil {
					return err
				}
				result.Payload = []byte(payload)
				if keysClaimed.Valid {
					if err := json.Unmarshal([]byte(keysClaimed.String), &result.KeysClaimed); err != nil {
						return err
					}
				}
				if chain.Valid {
					if err := json.Unmarshal([]byte(chain.String), &result.ForwardingCurve25519KeyChain); err != nil {
						return err
					}
				}
				results[eventID] = result
			}
			return rows.Err()
		},
	)
	return results, err
}
