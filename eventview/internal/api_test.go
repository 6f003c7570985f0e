package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/matrix-org/eventview/eventview/api"
	"github.com/matrix-org/eventview/eventview/storage"
	"github.com/matrix-org/eventview/eventview/synctypes"
	"github.com/matrix-org/eventview/internal/caching"
	"github.com/matrix-org/eventview/internal/sqlutil"
	"github.com/matrix-org/eventview/setup/config"
	"github.com/matrix-org/eventview/setup/process"
	"github.com/matrix-org/eventview/test"
)

var ctx = context.Background()

func mustCreateAPI(t *testing.T, dbType test.DBType) (*EventViewInternalAPI, func()) {
	t.Helper()
	connStr, close := test.PrepareDBConnectionString(t, dbType)
	cm := sqlutil.NewConnectionManager(nil, config.DatabaseOptions{})
	db, err := storage.NewDatabase(process.NewProcessContext(), cm, &config.DatabaseOptions{
		ConnectionString: config.DataSource(connStr),
	})
	require.NoError(t, err)
	caches, err := caching.NewRistrettoCache(8*1024*1024, time.Hour, false)
	require.NoError(t, err)
	return NewEventViewInternalAPI(db, caches), close
}

func storeEvents(t *testing.T, evAPI *EventViewInternalAPI, events ...*synctypes.ClientEvent) []string {
	t.Helper()
	var res api.PerformStoreEventsResponse
	require.NoError(t, evAPI.PerformStoreEvents(ctx, &api.PerformStoreEventsRequest{Events: events}, &res))
	return res.Stored
}

func TestPerformStoreEvents(t *testing.T) {
	alice := test.NewUser(t)
	room := test.NewRoom(t, alice)

	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		evAPI, close := mustCreateAPI(t, dbType)
		defer close()

		events := room.Events()
		stored := storeEvents(t, evAPI, events...)
		assert.Len(t, stored, len(events))

		// storing again is a no-op
		stored = storeEvents(t, evAPI, events...)
		assert.Empty(t, stored)

		invalid := []*synctypes.ClientEvent{
			nil,
			{RoomID: room.ID, Type: "m.room.message", Sender: alice.ID},
			{EventID: "$no_room", Type: "m.room.message", Sender: alice.ID},
			{EventID: "$no_type", RoomID: room.ID, Sender: alice.ID},
			{EventID: "$no_sender", RoomID: room.ID, Type: "m.room.message"},
			{EventID: "$no_content", RoomID: room.ID, Type: "m.room.message", Sender: alice.ID},
			{EventID: "$array_content", RoomID: room.ID, Type: "m.room.message", Sender: alice.ID, Content: []byte(`[]`)},
		}
		for _, ev := range invalid {
			err := evAPI.PerformStoreEvents(ctx, &api.PerformStoreEventsRequest{
				Events: []*synctypes.ClientEvent{ev},
			}, &api.PerformStoreEventsResponse{})
			assert.ErrorAs(t, err, &api.ErrInvalidEvent{})
		}
	})
}

func TestQueryDecryptedEvent(t *testing.T) {
	alice := test.NewUser(t)
	room := test.NewRoom(t, alice)
	encrypted := room.Encrypted(t, alice, "m.room.message", map[string]interface{}{"body": "first"}, map[string]interface{}{
		"rel_type": "m.thread",
		"event_id": "$root",
	})
	plain := room.CreateAndInsert(t, alice, "m.room.message", map[string]interface{}{"body": "plain"})

	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		evAPI, close := mustCreateAPI(t, dbType)
		defer close()
		storeEvents(t, evAPI, encrypted, plain)

		var res api.QueryDecryptedEventResponse
		require.NoError(t, evAPI.QueryDecryptedEvent(ctx, &api.QueryDecryptedEventRequest{EventID: encrypted.EventID}, &res))
		require.NotNil(t, res.Event)
		assert.Equal(t, "m.room.message", res.Event.Type)
		assert.Equal(t, alice.DeviceKey, res.Event.CryptoSenderKey)
		assert.Equal(t, test.MegolmAlgorithm, res.Event.Algorithm)
		assert.JSONEq(t, `{"body":"first","m.relates_to":{"rel_type":"m.thread","event_id":"$root"}}`, string(res.Event.ClearContent))

		// a new decryption result must never be hidden by the cache
		require.NoError(t, evAPI.PerformStoreDecryption(ctx, &api.PerformStoreDecryptionRequest{
			EventID: encrypted.EventID,
			Result: &synctypes.DecryptionResult{
				Payload:   []byte(`{"type":"m.room.message","content":{"body":"second"}}`),
				SenderKey: "rotated",
			},
		}, &api.PerformStoreDecryptionResponse{}))
		res = api.QueryDecryptedEventResponse{}
		require.NoError(t, evAPI.QueryDecryptedEvent(ctx, &api.QueryDecryptedEventRequest{EventID: encrypted.EventID}, &res))
		require.NotNil(t, res.Event)
		assert.Equal(t, "rotated", res.Event.CryptoSenderKey)
		assert.JSONEq(t, `{"body":"second","m.relates_to":{"rel_type":"m.thread","event_id":"$root"}}`, string(res.Event.ClearContent))

		res = api.QueryDecryptedEventResponse{}
		require.NoError(t, evAPI.QueryDecryptedEvent(ctx, &api.QueryDecryptedEventRequest{EventID: plain.EventID}, &res))
		assert.Nil(t, res.Event)

		err := evAPI.QueryDecryptedEvent(ctx, &api.QueryDecryptedEventRequest{EventID: "$unknown"}, &res)
		assert.ErrorAs(t, err, &api.ErrUnknownEvent{})
	})
}

func TestPerformStoreDecryptionErrors(t *testing.T) {
	alice := test.NewUser(t)
	room := test.NewRoom(t, alice)
	plain := room.CreateAndInsert(t, alice, "m.room.message", map[string]interface{}{"body": "plain"})

	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		evAPI, close := mustCreateAPI(t, dbType)
		defer close()
		storeEvents(t, evAPI, plain)

		result := &synctypes.DecryptionResult{Payload: []byte(`{"type":"m.room.message","content":{}}`)}
		err := evAPI.PerformStoreDecryption(ctx, &api.PerformStoreDecryptionRequest{EventID: "$unknown", Result: result}, &api.PerformStoreDecryptionResponse{})
		assert.ErrorAs(t, err, &api.ErrUnknownEvent{})

		err = evAPI.PerformStoreDecryption(ctx, &api.PerformStoreDecryptionRequest{EventID: plain.EventID, Result: result}, &api.PerformStoreDecryptionResponse{})
		assert.ErrorAs(t, err, &api.ErrInvalidEvent{})

		err = evAPI.PerformStoreDecryption(ctx, &api.PerformStoreDecryptionRequest{EventID: plain.EventID}, &api.PerformStoreDecryptionResponse{})
		assert.ErrorAs(t, err, &api.ErrInvalidEvent{})
	})
}

func TestQueryMemberContent(t *testing.T) {
	alice := test.NewUser(t)
	bob := test.NewUser(t)
	room := test.NewRoom(t, alice)
	join := room.Membership(t, bob, bob, spec.Join)
	kick := room.Membership(t, alice, bob, spec.Leave)
	message := room.CreateAndInsert(t, alice, "m.room.message", map[string]interface{}{"body": "hi"})

	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		evAPI, close := mustCreateAPI(t, dbType)
		defer close()
		storeEvents(t, evAPI, room.Events()...)

		var res api.QueryMemberContentResponse
		require.NoError(t, evAPI.QueryMemberContent(ctx, &api.QueryMemberContentRequest{EventID: join.EventID}, &res))
		require.NotNil(t, res.Content)
		assert.Equal(t, synctypes.MembershipJoin, res.Content.Membership)

		// the leave keeps the name bob had while joined
		for i := 0; i < 2; i++ {
			res = api.QueryMemberContentResponse{}
			require.NoError(t, evAPI.QueryMemberContent(ctx, &api.QueryMemberContentRequest{EventID: kick.EventID}, &res))
			require.NotNil(t, res.Content)
			assert.Equal(t, synctypes.MembershipLeave, res.Content.Membership)
			require.NotNil(t, res.Content.DisplayName)
			assert.Equal(t, bob.DisplayName, *res.Content.DisplayName)
			require.NotNil(t, res.Content.AvatarURL)
			assert.Equal(t, bob.AvatarURL, *res.Content.AvatarURL)
		}

		res = api.QueryMemberContentResponse{}
		require.NoError(t, evAPI.QueryMemberContent(ctx, &api.QueryMemberContentRequest{EventID: message.EventID}, &res))
		assert.Nil(t, res.Content)

		err := evAPI.QueryMemberContent(ctx, &api.QueryMemberContentRequest{EventID: "$unknown"}, &res)
		assert.ErrorAs(t, err, &api.ErrUnknownEvent{})
	})
}

func TestQueryRoomMembers(t *testing.T) {
	alice := test.NewUser(t)
	bob := test.NewUser(t)
	charlie := test.NewUser(t)
	room := test.NewRoom(t, alice)
	room.Membership(t, bob, bob, spec.Join)
	room.Membership(t, alice, bob, spec.Ban)
	room.Membership(t, alice, charlie, spec.Invite)
	// a member event without a valid membership is skipped
	mallory := test.NewUser(t)
	room.CreateAndInsert(t, mallory, spec.MRoomMember, map[string]interface{}{"membership": "dancing"}, test.WithStateKey(mallory.ID))

	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		evAPI, close := mustCreateAPI(t, dbType)
		defer close()
		storeEvents(t, evAPI, room.Events()...)

		var res api.QueryRoomMembersResponse
		require.NoError(t, evAPI.QueryRoomMembers(ctx, &api.QueryRoomMembersRequest{RoomID: room.ID}, &res))
		got := map[string]synctypes.Membership{}
		for _, m := range res.Members {
			got[m.UserID] = m.Content.Membership
			if m.UserID == bob.ID {
				// banned users keep the name they had while joined
				require.NotNil(t, m.Content.DisplayName)
				assert.Equal(t, bob.DisplayName, *m.Content.DisplayName)
			}
		}
		assert.Equal(t, map[string]synctypes.Membership{
			alice.ID:   synctypes.MembershipJoin,
			bob.ID:     synctypes.MembershipBan,
			charlie.ID: synctypes.MembershipInvite,
		}, got)

		res = api.QueryRoomMembersResponse{}
		require.NoError(t, evAPI.QueryRoomMembers(ctx, &api.QueryRoomMembersRequest{RoomID: room.ID, ExcludeLeft: true}, &res))
		got = map[string]synctypes.Membership{}
		for _, m := range res.Members {
			got[m.UserID] = m.Content.Membership
		}
		assert.Equal(t, map[string]synctypes.Membership{
			alice.ID:   synctypes.MembershipJoin,
			charlie.ID: synctypes.MembershipInvite,
		}, got)

		res = api.QueryRoomMembersResponse{}
		require.NoError(t, evAPI.QueryRoomMembers(ctx, &api.QueryRoomMembersRequest{RoomID: "!empty:test"}, &res))
		assert.Empty(t, res.Members)
	})
}

type countingDB struct {
	storage.Database
	eventCalls atomic.Int32
	release    chan struct{}
}

func (d *countingDB) Event(ctx context.Context, eventID string) (*synctypes.ClientEvent, error) {
	d.eventCalls.Inc()
	<-d.release
	return d.Database.Event(ctx, eventID)
}

func TestConcurrentQueriesShareLoads(t *testing.T) {
	alice := test.NewUser(t)
	bob := test.NewUser(t)
	room := test.NewRoom(t, alice)
	leave := room.Membership(t, bob, bob, spec.Leave)

	evAPI, closeDB := mustCreateAPI(t, test.DBTypeSQLite)
	defer closeDB()
	storeEvents(t, evAPI, room.Events()...)
	db := &countingDB{Database: evAPI.DB, release: make(chan struct{})}
	evAPI.DB = db

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*synctypes.RoomMemberContent, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var res api.QueryMemberContentResponse
			assert.NoError(t, evAPI.QueryMemberContent(ctx, &api.QueryMemberContentRequest{EventID: leave.EventID}, &res))
			results[i] = res.Content
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(db.release)
	wg.Wait()

	assert.Equal(t, int32(1), db.eventCalls.Load())
	for _, content := range results {
		require.NotNil(t, content)
		assert.Equal(t, synctypes.MembershipLeave, content.Membership)
	}
}

// pausingDB blocks the first event read after it has hit the database, until
// released.
type pausingDB struct {
	storage.Database
	calls   atomic.Int32
	loaded  chan struct{}
	release chan struct{}
}

func (d *pausingDB) Event(ctx context.Context, eventID string) (*synctypes.ClientEvent, error) {
	ev, err := d.Database.Event(ctx, eventID)
	if d.calls.Inc() == 1 {
		close(d.loaded)
		<-d.release
	}
	return ev, err
}

func TestDecryptionReplacedDuringQuery(t *testing.T) {
	alice := test.NewUser(t)
	room := test.NewRoom(t, alice)
	encrypted := room.Encrypted(t, alice, "m.room.message", map[string]interface{}{"body": "first"}, nil)

	evAPI, closeDB := mustCreateAPI(t, test.DBTypeSQLite)
	defer closeDB()
	storeEvents(t, evAPI, encrypted)
	db := &pausingDB{Database: evAPI.DB, loaded: make(chan struct{}), release: make(chan struct{})}
	evAPI.DB = db

	done := make(chan struct{})
	go func() {
		defer close(done)
		var res api.QueryDecryptedEventResponse
		assert.NoError(t, evAPI.QueryDecryptedEvent(ctx, &api.QueryDecryptedEventRequest{EventID: encrypted.EventID}, &res))
	}()

	// replace the decryption while the query holds the old row
	<-db.loaded
	require.NoError(t, evAPI.PerformStoreDecryption(ctx, &api.PerformStoreDecryptionRequest{
		EventID: encrypted.EventID,
		Result: &synctypes.DecryptionResult{
			Payload:   []byte(`{"type":"m.room.message","content":{"body":"second"}}`),
			SenderKey: "rotated",
		},
	}, &api.PerformStoreDecryptionResponse{}))
	close(db.release)
	<-done
	// let the cache apply any pending writes
	time.Sleep(20 * time.Millisecond)

	var res api.QueryDecryptedEventResponse
	require.NoError(t, evAPI.QueryDecryptedEvent(ctx, &api.QueryDecryptedEventRequest{EventID: encrypted.EventID}, &res))
	require.NotNil(t, res.Event)
	assert.Equal(t, "rotated", res.Event.CryptoSenderKey)
	assert.JSONEq(t, `{"body":"second"}`, string(res.Event.ClearContent))
}
