package sqlutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selectEventIDsSQL = "SELECT event_id FROM eventview_events WHERE event_id IN ($1)"

func eventIDParams(ids ...string) []interface{} {
	params := make([]interface{}, len(ids))
	for i := range ids {
		params[i] = ids[i]
	}
	return params
}

func eventIDArgs(ids ...string) []driver.Value {
	args := make([]driver.Value, len(ids))
	for i := range ids {
		args[i] = ids[i]
	}
	return args
}

func scanEventIDs(result *[]string) func(rows *sql.Rows) error {
	return func(rows *sql.Rows) error {
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			*result = append(*result, id)
		}
		return rows.Err()
	}
}

func TestRunLimitedVariablesQuery(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		batches [][]string
	}{
		{
			name:    "fewer variables than limit",
			ids:     []string{"$a", "$b", "$c"},
			batches: [][]string{{"$a", "$b", "$c"}},
		},
		{
			name:    "exactly the limit",
			ids:     []string{"$a", "$b", "$c", "$d"},
			batches: [][]string{{"$a", "$b", "$c", "$d"}},
		},
		{
			name:    "more variables than limit",
			ids:     []string{"$a", "$b", "$c", "$d", "$e"},
			batches: [][]string{{"$a", "$b", "$c", "$d"}, {"$e"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			defer db.Close() // nolint: errcheck

			for _, batch := range tt.batches {
				rows := mock.NewRows([]string{"event_id"})
				for _, id := range batch {
					rows.AddRow(id)
				}
				mock.ExpectQuery(expandSQL(selectEventIDsSQL, len(batch))).
					WithArgs(eventIDArgs(batch...)...).
					WillReturnRows(rows)
			}

			var result []string
			err = RunLimitedVariablesQuery(context.Background(), selectEventIDsSQL, db, eventIDParams(tt.ids...), 4, scanEventIDs(&result))
			require.NoError(t, err)
			assert.Equal(t, tt.ids, result)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRunLimitedVariablesQueryScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() // nolint: errcheck

	// a NULL event ID cannot be scanned into a string
	rows := mock.NewRows([]string{"event_id"}).AddRow(nil).AddRow("$b")
	mock.ExpectQuery(`SELECT event_id FROM eventview_events WHERE event_id IN \(\$1, \$2\)`).WillReturnRows(rows)

	var result []string
	err = RunLimitedVariablesQuery(context.Background(), selectEventIDsSQL, db, eventIDParams("$a", "$b"), 4, scanEventIDs(&result))
	assert.Error(t, err)
}

func TestRunLimitedVariablesQueryPropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() // nolint: errcheck

	mock.ExpectQuery(`SELECT event_id`).WillReturnError(sql.ErrConnDone)

	var result []string
	err = RunLimitedVariablesQuery(context.Background(), selectEventIDsSQL, db, eventIDParams("$a"), 4, scanEventIDs(&result))
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Empty(t, result)
}

// expandSQL renders the IN clause the way QueryVariadic does so that
// sqlmock can match the exact statement.
func expandSQL(query string, n int) string {
	return strings.Replace(query, "($1)", QueryVariadic(n), 1)
}
