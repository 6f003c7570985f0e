package storage_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/eventview/eventview/storage"
	"github.com/matrix-org/eventview/eventview/synctypes"
	"github.com/matrix-org/eventview/internal/sqlutil"
	"github.com/matrix-org/eventview/setup/config"
	"github.com/matrix-org/eventview/setup/process"
	"github.com/matrix-org/eventview/test"
)

var ctx = context.Background()

func mustCreateDatabase(t *testing.T, dbType test.DBType) (storage.Database, func()) {
	connStr, close := test.PrepareDBConnectionString(t, dbType)
	cm := sqlutil.NewConnectionManager(nil, config.DatabaseOptions{})
	db, err := storage.NewDatabase(process.NewProcessContext(), cm, &config.DatabaseOptions{
		ConnectionString: config.DataSource(connStr),
	})
	if err != nil {
		t.Fatalf("NewDatabase returned %s", err)
	}
	return db, close
}

func TestStoreAndFetchEvents(t *testing.T) {
	alice := test.NewUser(t)
	bob := test.NewUser(t)
	room := test.NewRoom(t, alice)
	room.Membership(t, bob, bob, spec.Join)
	room.Encrypted(t, bob, "m.room.message", map[string]interface{}{"body": "hi"}, nil)
	room.CreateAndInsert(t, alice, "m.room.message", map[string]interface{}{"body": "plain"})

	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		db, close := mustCreateDatabase(t, dbType)
		defer close()

		events := room.Events()
		for _, ev := range events {
			inserted, err := db.StoreEvent(ctx, ev)
			require.NoError(t, err)
			assert.True(t, inserted, ev.EventID)
		}

		for _, want := range events {
			got, err := db.Event(ctx, want.EventID)
			require.NoError(t, err)
			require.NotNil(t, got, want.EventID)
			assert.Equal(t, want.EventID, got.EventID)
			assert.Equal(t, want.Type, got.Type)
			assert.Equal(t, want.StateKey, got.StateKey)
			assert.JSONEq(t, string(want.Content), string(got.Content))
			if want.Decryption == nil {
				assert.Nil(t, got.Decryption)
			} else {
				require.NotNil(t, got.Decryption)
				assert.JSONEq(t, string(want.Decryption.Payload), string(got.Decryption.Payload))
				assert.Equal(t, want.Decryption.SenderKey, got.Decryption.SenderKey)
			}
		}

		ids := []string{"$unknown"}
		for _, ev := range events {
			ids = append(ids, ev.EventID)
		}
		all, err := db.Events(ctx, ids)
		require.NoError(t, err)
		assert.Len(t, all, len(events))

		missing, err := db.Event(ctx, "$unknown")
		assert.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestStoreEventTwiceKeepsFirst(t *testing.T) {
	alice := test.NewUser(t)
	room := test.NewRoom(t, alice)
	ev := room.CreateAndInsert(t, alice, "m.room.message", map[string]interface{}{"body": "first"})

	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		db, close := mustCreateDatabase(t, dbType)
		defer close()

		inserted, err := db.StoreEvent(ctx, ev)
		require.NoError(t, err)
		assert.True(t, inserted)

		again := *ev
		again.Content = []byte(`{"body":"second"}`)
		inserted, err = db.StoreEvent(ctx, &again)
		require.NoError(t, err)
		assert.False(t, inserted)

		got, err := db.Event(ctx, ev.EventID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"body":"first"}`, string(got.Content))
	})
}

func TestDecryptionResults(t *testing.T) {
	alice := test.NewUser(t)
	room := test.NewRoom(t, alice)
	ev := room.CreateAndInsert(t, alice, synctypes.MRoomEncrypted, map[string]interface{}{
		"algorithm":  test.MegolmAlgorithm,
		"ciphertext": "AwgAEnAC",
	})

	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		db, close := mustCreateDatabase(t, dbType)
		defer close()

		_, err := db.StoreEvent(ctx, ev)
		require.NoError(t, err)

		res, err := db.DecryptionResult(ctx, ev.EventID)
		require.NoError(t, err)
		assert.Nil(t, res)

		first := &synctypes.DecryptionResult{
			Payload:     []byte(`{"type":"m.room.message","content":{"body":"one"}}`),
			SenderKey:   "senderkey",
			KeysClaimed: map[string]string{"ed25519": "signingkey"},
		}
		require.NoError(t, db.StoreDecryptionResult(ctx, ev.EventID, first))

		second := &synctypes.DecryptionResult{
			Payload:                      []byte(`{"type":"m.room.message","content":{"body":"two"}}`),
			SenderKey:                    "otherkey",
			ForwardingCurve25519KeyChain: []string{"fwd1", "fwd2"},
		}
		require.NoError(t, db.StoreDecryptionResult(ctx, ev.EventID, second))

		res, err = db.DecryptionResult(ctx, ev.EventID)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.JSONEq(t, string(second.Payload), string(res.Payload))
		assert.Equal(t, "otherkey", res.SenderKey)
		assert.Empty(t, res.KeysClaimed)
		assert.Equal(t, []string{"fwd1", "fwd2"}, res.ForwardingCurve25519KeyChain)

		got, err := db.Event(ctx, ev.EventID)
		require.NoError(t, err)
		require.NotNil(t, got.Decryption)
		assert.Equal(t, "otherkey", got.Decryption.SenderKey)
	})
}

func TestRoomMemberEvents(t *testing.T) {
	alice := test.NewUser(t)
	bob := test.NewUser(t)
	charlie := test.NewUser(t)
	room := test.NewRoom(t, alice)
	room.Membership(t, bob, bob, spec.Join)
	room.Membership(t, alice, charlie, spec.Invite)
	bobLeave := room.Membership(t, bob, bob, spec.Leave)
	charlieJoin := room.Membership(t, charlie, charlie, spec.Join)

	other := test.NewRoom(t, bob)

	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		db, close := mustCreateDatabase(t, dbType)
		defer close()

		for _, ev := range append(room.Events(), other.Events()...) {
			_, err := db.StoreEvent(ctx, ev)
			require.NoError(t, err)
		}

		members, err := db.RoomMemberEvents(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, members, 3)

		latest := map[string]string{}
		for _, ev := range members {
			require.NotNil(t, ev.StateKey)
			latest[*ev.StateKey] = ev.EventID
		}
		assert.Equal(t, bobLeave.EventID, latest[bob.ID])
		assert.Equal(t, charlieJoin.EventID, latest[charlie.ID])
		assert.Contains(t, latest, alice.ID)
	})
}

func TestEventsAcrossVariableLimit(t *testing.T) {
	alice := test.NewUser(t)
	room := test.NewRoom(t, alice)
	for i := 0; i < int(sqlutil.SQLite3MaxVariables)+10; i++ {
		room.CreateAndInsert(t, alice, "m.room.message", map[string]interface{}{"body": fmt.Sprintf("%d", i)})
	}

	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		db, close := mustCreateDatabase(t, dbType)
		defer close()

		events := room.Events()
		ids := make([]string, 0, len(events))
		for _, ev := range events {
			_, err := db.StoreEvent(ctx, ev)
			require.NoError(t, err)
			ids = append(ids, ev.EventID)
		}
		got, err := db.Events(ctx, ids)
		require.NoError(t, err)
		assert.Len(t, got, len(events))
	})
}
