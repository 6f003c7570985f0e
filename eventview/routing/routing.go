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

package routing

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/matrix-org/util"

	"github.com/matrix-org/eventview/eventview/api"
	"github.com/matrix-org/eventview/internal"
	"github.com/matrix-org/eventview/internal/httputil"
	"github.com/matrix-org/eventview/setup/config"
)

// Setup registers HTTP handlers with the given ServeMux.
// The provided evMux MUST have `UseEncodedPath()` enabled or else event IDs
// containing slashes will be split by the router.
func Setup(
	evMux *mux.Router,
	cfg *config.APIOptions,
	evAPI api.EventViewInternalAPI,
) {
	v1mux := evMux.PathPrefix(cfg.PathPrefix + "/v1").Subrouter()

	v1mux.Handle("/events",
		httputil.MakeExternalAPI("store_events", func(req *http.Request) util.JSONResponse {
			return StoreEvents(req, evAPI)
		}),
	).Methods(http.MethodPut)

	v1mux.Handle("/events/{eventID}/decryption",
		makePathAPI("store_decryption", func(req *http.Request, vars map[string]string) util.JSONResponse {
			return StoreDecryption(req, evAPI, vars["eventID"])
		}),
	).Methods(http.MethodPut)

	v1mux.Handle("/events/{eventID}/decrypted",
		makePathAPI("get_decrypted_event", func(req *http.Request, vars map[string]string) util.JSONResponse {
			return GetDecryptedEvent(req, evAPI, vars["eventID"])
		}),
	).Methods(http.MethodGet)

	v1mux.Handle("/events/{eventID}/member",
		makePathAPI("get_member_content", func(req *http.Request, vars map[string]string) util.JSONResponse {
			return GetMemberContent(req, evAPI, vars["eventID"])
		}),
	).Methods(http.MethodGet)

	v1mux.Handle("/rooms/{roomID}/members",
		makePathAPI("get_room_members", func(req *http.Request, vars map[string]string) util.JSONResponse {
			return GetRoomMembers(req, evAPI, vars["roomID"])
		}),
	).Methods(http.MethodGet)
}

// makePathAPI decodes and validates the path variables of the request
// before calling f.
func makePathAPI(metricsName string, f func(*http.Request, map[string]string) util.JSONResponse) http.Handler {
	return httputil.MakeExternalAPI(metricsName, func(req *http.Request) util.JSONResponse {
		vars, err := httputil.URLDecodeMapValues(mux.Vars(req))
		if err != nil {
			return util.JSONResponse{
				Code: http.StatusBadRequest,
				JSON: spec.InvalidParam("badly encoded path params"),
			}
		}
		if eventID, ok := vars["eventID"]; ok {
			if resErr := internal.ValidationResponse(internal.ValidateEventID(eventID)); resErr != nil {
				return *resErr
			}
		}
		if roomID, ok := vars["roomID"]; ok {
			if resErr := internal.ValidationResponse(internal.ValidateRoomID(roomID)); resErr != nil {
				return *resErr
			}
		}
		return f(req, vars)
	})
}

// errorResponse converts an error returned by the internal API into a JSON
// error response.
func errorResponse(req *http.Request, err error, what string) util.JSONResponse {
	var invalid api.ErrInvalidEvent
	var unknown api.ErrUnknownEvent
	switch {
	case errors.As(err, &invalid):
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: spec.InvalidParam(invalid.Error()),
		}
	case errors.As(err, &unknown):
		return util.JSONResponse{
			Code: http.StatusNotFound,
			JSON: spec.NotFound(unknown.Error()),
		}
	default:
		util.GetLogger(req.Context()).WithError(err).Error(what + " failed")
		return util.JSONResponse{
			Code: http.StatusInternalServerError,
			JSON: spec.InternalServerError{},
		}
	}
}
