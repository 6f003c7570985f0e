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
	"encoding/json"

	"github.com/lib/pq"

	"github.com/matrix-org/eventview/eventview/storage/tables"
	"github.com/matrix-org/eventview/eventview/synctypes"
	"github.com/matrix-org/eventview/internal"
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
	forwarding_chain TEXT[]
);
`

const upsertDecryptionResultSQL = "" +
	"INSERT INTO eventview_decryption_results (event_id, payload, sender_key, keys_claimed, forwarding_chain)" +
	" VALUES ($1, $2, $3, $4, $5)" +
	" ON CONFLICT (event_id) DO UPDATE SET payload = $2, sender_key = $3, keys_claimed = $4, forwarding_chain = $5"

const selectDecryptionResultsSQL = "" +
	"SELECT event_id, payload, sender_key, keys_claimed, forwarding_chain FROM eventview_decryption_results" +
	" WHERE event_id = ANY($1)"

type decryptionResultsStatements struct {
	upsertDecryptionResultStmt  *sql.Stmt
	selectDecryptionResultsStmt *sql.Stmt
}

func NewPostgresDecryptionResultsTable(db *sql.DB) (tables.DecryptionResults, error) {
	s := &decryptionResultsStatements{}
	_, err := db.Exec(decryptionResultsSchema)
	if err != nil {
		return nil, err
	}
	return s, sqlutil.StatementList{
		{&s.upsertDecryptionResultStmt, upsertDecryptionResultSQL},
		{&s.selectDecryptionResultsStmt, selectDecryptionResultsSQL},
	}.Prepare(db)
}

func (s *decryptionResultsStatements) UpsertDecryptionResult(
	ctx context.Context, txn *sql.Tx, eventID string, result *synctypes.DecryptionResult,
) error {
	keysClaimed, err := json.Marshal(result.KeysClaimed)
	if err != nil {
		return err
	}
	_, err = sqlutil.TxStmt(txn, s.upsertDecryptionResultStmt).ExecContext(
		ctx, eventID, string(result.Payload), result.SenderKey, string(keysClaimed),
		pq.StringArray(result.ForwardingCurve25519KeyChain),
	)
	return err
}

func (s *decryptionResultsStatements) SelectDecryptionResults(
	ctx context.Context, txn *sql.Tx, eventIDs []string,
) (map[string]*synctypes.DecryptionResult, error) {
	rows, err := sqlutil.TxStmt(txn, s.selectDecryptionResultsStmt).QueryContext(ctx, pq.StringArray(eventIDs))
	if err != nil {
		return nil, err
	}
	defer internal.CloseAndLogIfError(ctx, rows, "SelectDecryptionResults: rows.close() failed")

	results := make(map[string]*synctypes.DecryptionResult, len(eventIDs))
	var eventID, payload string
	var keysClaimed sql.NullString
	for rows.Next() {
		result := &synctypes.DecryptionResult{}
		var chain pq.StringArray
		if err = rows.Scan(&eventID, &payload, &result.SenderKey, &keysClaimed, &chain); err != nil {
			return nil, err
		}
		result.Payload = []byte(payload)
		if keysClaimed.Valid {
			if err = json.Unmarshal([]byte(keysClaimed.String), &result.KeysClaimed); err != nil {
				return nil, err
			}
		}
		if len(chain) > 0 {
			result.ForwardingCurve25519KeyChain = chain
		}
		results[eventID] = result
	}
	return results, rows.Err()
}
