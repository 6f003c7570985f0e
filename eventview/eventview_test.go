package eventview_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/eventview/eventview"
	"github.com/matrix-org/eventview/eventview/synctypes"
	"github.com/matrix-org/eventview/internal/caching"
	"github.com/matrix-org/eventview/internal/httputil"
	"github.com/matrix-org/eventview/internal/sqlutil"
	"github.com/matrix-org/eventview/setup/config"
	"github.com/matrix-org/eventview/setup/process"
	"github.com/matrix-org/eventview/test"
)

func mustCreateRouter(t *testing.T, dbType test.DBType) (http.Handler, func()) {
	t.Helper()
	connStr, close := test.PrepareDBConnectionString(t, dbType)

	var cfg config.EventView
	cfg.Defaults(false)
	cfg.Global.DatabaseOptions.ConnectionString = config.DataSource(connStr)
	configErrs := &config.ConfigErrors{}
	cfg.Verify(configErrs)
	require.Empty(t, *configErrs)

	processCtx := process.NewProcessContext()
	cm := sqlutil.NewConnectionManager(processCtx, cfg.Global.DatabaseOptions)
	caches, err := caching.NewRistrettoCache(cfg.Global.Cache.EstimatedMaxSize, cfg.Global.Cache.MaxAge, false)
	require.NoError(t, err)

	routers := httputil.NewRouters()
	evAPI := eventview.NewInternalAPI(processCtx, &cfg, cm, caches)
	eventview.AddPublicRoutes(routers, &cfg, evAPI)
	return routers.EventView, func() {
		processCtx.ShutdownEventView()
		processCtx.WaitForComponentsToFinish()
		close()
	}
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reqBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func eventPath(eventID, suffix string) string {
	return "/_eventview/v1/events/" + url.PathEscape(eventID) + "/" + suffix
}

func TestRoutes(t *testing.T) {
	alice := test.NewUser(t)
	bob := test.NewUser(t)
	room := test.NewRoom(t, alice)
	bobJoin := room.Membership(t, bob, bob, spec.Join)
	bobLeave := room.Membership(t, bob, bob, spec.Leave)
	encrypted := room.Encrypted(t, alice, "m.room.message", map[string]interface{}{"body": "secret"}, nil)
	undecrypted := room.CreateAndInsert(t, alice, synctypes.MRoomEncrypted, map[string]interface{}{
		"algorithm":  test.MegolmAlgorithm,
		"ciphertext": "AwgAEnAC",
	})

	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		h, close := mustCreateRouter(t, dbType)
		defer close()

		rec := do(t, h, http.MethodPut, "/_eventview/v1/events", map[string]interface{}{
			"events": room.Events(),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var stored struct {
			Stored []string `json:"stored"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
		assert.Len(t, stored.Stored, len(room.Events()))

		t.Run("store requires events", func(t *testing.T) {
			rec := do(t, h, http.MethodPut, "/_eventview/v1/events", map[string]interface{}{})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			rec = do(t, h, http.MethodPut, "/_eventview/v1/events", map[string]interface{}{
				"events": []map[string]interface{}{{"event_id": "$x"}},
			})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			rec = do(t, h, http.MethodPut, "/_eventview/v1/events", map[string]interface{}{
				"events": []map[string]interface{}{{
					"event_id": "$x", "room_id": room.ID, "type": "m.room.message", "sender": "alice",
				}},
			})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			for _, content := range []interface{}{nil, "text", []string{"a"}} {
				ev := map[string]interface{}{
					"event_id": "$no_content", "room_id": room.ID, "type": "m.room.message", "sender": alice.ID,
				}
				if content != nil {
					ev["content"] = content
				}
				rec = do(t, h, http.MethodPut, "/_eventview/v1/events", map[string]interface{}{
					"events": []map[string]interface{}{ev},
				})
				assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
				assert.Contains(t, rec.Body.String(), "M_BAD_JSON")
			}
		})

		t.Run("malformed identifiers", func(t *testing.T) {
			rec := do(t, h, http.MethodGet, eventPath("not-an-event", "member"), nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			rec = do(t, h, http.MethodGet, "/_eventview/v1/rooms/not-a-room/members", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})

		t.Run("member content", func(t *testing.T) {
			rec := do(t, h, http.MethodGet, eventPath(bobLeave.EventID, "member"), nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.JSONEq(t, `{"membership":"leave","displayname":"`+bob.DisplayName+`","avatar_url":"`+bob.AvatarURL+`"}`, rec.Body.String())

			rec = do(t, h, http.MethodGet, eventPath(bobJoin.EventID, "member"), nil)
			assert.Equal(t, http.StatusOK, rec.Code)

			rec = do(t, h, http.MethodGet, eventPath(encrypted.EventID, "member"), nil)
			assert.Equal(t, http.StatusNotFound, rec.Code)

			rec = do(t, h, http.MethodGet, eventPath("$unknown", "member"), nil)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})

		t.Run("decrypted event", func(t *testing.T) {
			rec := do(t, h, http.MethodGet, eventPath(encrypted.EventID, "decrypted"), nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var ev synctypes.ValidDecryptedEvent
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
			assert.Equal(t, encrypted.EventID, ev.EventID)
			assert.Equal(t, room.ID, ev.RoomID)
			assert.JSONEq(t, `{"body":"secret"}`, string(ev.ClearContent))

			rec = do(t, h, http.MethodGet, eventPath(undecrypted.EventID, "decrypted"), nil)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})

		t.Run("store decryption", func(t *testing.T) {
			rec := do(t, h, http.MethodPut, eventPath(undecrypted.EventID, "decryption"), map[string]interface{}{
				"payload":    map[string]interface{}{"type": "m.room.message", "content": map[string]interface{}{"body": "late"}},
				"sender_key": "latekey",
			})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			rec = do(t, h, http.MethodGet, eventPath(undecrypted.EventID, "decrypted"), nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var ev synctypes.ValidDecryptedEvent
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
			assert.Equal(t, "latekey", ev.CryptoSenderKey)

			rec = do(t, h, http.MethodPut, eventPath(undecrypted.EventID, "decryption"), map[string]interface{}{})
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			rec = do(t, h, http.MethodPut, eventPath(bobJoin.EventID, "decryption"), map[string]interface{}{
				"payload": map[string]interface{}{"type": "m.room.message", "content": map[string]interface{}{}},
			})
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			rec = do(t, h, http.MethodPut, eventPath("$unknown", "decryption"), map[string]interface{}{
				"payload": map[string]interface{}{"type": "m.room.message", "content": map[string]interface{}{}},
			})
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})

		t.Run("room members", func(t *testing.T) {
			path := "/_eventview/v1/rooms/" + url.PathEscape(room.ID) + "/members"
			rec := do(t, h, http.MethodGet, path, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var res struct {
				Members []struct {
					UserID  string                      `json:"user_id"`
					Content synctypes.RoomMemberContent `json:"content"`
				} `json:"members"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Len(t, res.Members, 2)

			rec = do(t, h, http.MethodGet, path+"?exclude_left=true", nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			res.Members = nil
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			require.Len(t, res.Members, 1)
			assert.Equal(t, alice.ID, res.Members[0].UserID)

			rec = do(t, h, http.MethodGet, path+"?exclude_left=maybe", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})

		t.Run("unknown route", func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/_eventview/v1/nope", nil)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Contains(t, rec.Body.String(), "M_UNRECOGNIZED")
		})
	})
}
