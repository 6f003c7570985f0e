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
	"fmt"
	"net/http"

	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/matrix-org/util"
	"github.com/tidwall/gjson"

	"github.com/matrix-org/eventview/eventview/api"
	"github.com/matrix-org/eventview/eventview/synctypes"
	"github.com/matrix-org/eventview/internal"
	"github.com/matrix-org/eventview/internal/httputil"
)

// StoreEvents implements PUT /v1/events
func StoreEvents(req *http.Request, evAPI api.EventViewInternalAPI) util.JSONResponse {
	var request api.PerformStoreEventsRequest
	if resErr := httputil.UnmarshalJSONRequest(req, &request); resErr != nil {
		return *resErr
	}
	if len(request.Events) == 0 {
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: spec.BadJSON("No events were given"),
		}
	}
	for _, ev := range request.Events {
		if resErr := validateClientEvent(ev); resErr != nil {
			return *resErr
		}
	}
	var response api.PerformStoreEventsResponse
	if err := evAPI.PerformStoreEvents(req.Context(), &request, &response); err != nil {
		return errorResponse(req, err, "PerformStoreEvents")
	}
	if response.Stored == nil {
		response.Stored = []string{}
	}
	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: response,
	}
}

// validateClientEvent checks the identifiers of an event before it is
// handed to the internal API, which only checks that they are present.
func validateClientEvent(ev *synctypes.ClientEvent) *util.JSONResponse {
	if ev == nil {
		return &util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: spec.BadJSON("events must be objects"),
		}
	}
	if err := internal.ValidateEventID(ev.EventID); err != nil {
		return internal.ValidationResponse(err)
	}
	if err := internal.ValidateRoomID(ev.RoomID); err != nil {
		return internal.ValidationResponse(fmt.Errorf("%s: %w", ev.EventID, err))
	}
	if err := internal.ValidateSender(ev.Sender); err != nil {
		return internal.ValidationResponse(fmt.Errorf("%s: %w", ev.EventID, err))
	}
	if ev.Type == "" {
		return &util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: spec.MissingParam(ev.EventID + ": missing type"),
		}
	}
	if !gjson.ParseBytes(ev.Content).IsObject() {
		return &util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: spec.BadJSON(ev.EventID + ": content must be an object"),
		}
	}
	return nil
}

// StoreDecryption implements PUT /v1/events/{eventID}/decryption
func StoreDecryption(req *http.Request, evAPI api.EventViewInternalAPI, eventID string) util.JSONResponse {
	var result synctypes.DecryptionResult
	if resErr := httputil.UnmarshalJSONRequest(req, &result); resErr != nil {
		return *resErr
	}
	if !synctypes.IsPresent(result.Payload) {
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: spec.MissingParam("Missing payload"),
		}
	}
	request := api.PerformStoreDecryptionRequest{
		EventID: eventID,
		Result:  &result,
	}
	if err := evAPI.PerformStoreDecryption(req.Context(), &request, &api.PerformStoreDecryptionResponse{}); err != nil {
		return errorResponse(req, err, "PerformStoreDecryption")
	}
	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: struct{}{},
	}
}

// GetDecryptedEvent implements GET /v1/events/{eventID}/decrypted
func GetDecryptedEvent(req *http.Request, evAPI api.EventViewInternalAPI, eventID string) util.JSONResponse {
	var response api.QueryDecryptedEventResponse
	err := evAPI.QueryDecryptedEvent(req.Context(), &api.QueryDecryptedEventRequest{EventID: eventID}, &response)
	if err != nil {
		return errorResponse(req, err, "QueryDecryptedEvent")
	}
	if response.Event == nil {
		return util.JSONResponse{
			Code: http.StatusNotFound,
			JSON: spec.NotFound("The event is not a decrypted encrypted event"),
		}
	}
	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: response.Event,
	}
}

// GetMemberContent implements GET /v1/events/{eventID}/member
func GetMemberContent(req *http.Request, evAPI api.EventViewInternalAPI, eventID string) util.JSONResponse {
	var response api.QueryMemberContentResponse
	err := evAPI.QueryMemberContent(req.Context(), &api.QueryMemberContentRequest{EventID: eventID}, &response)
	if err != nil {
		return errorResponse(req, err, "QueryMemberContent")
	}
	if response.Content == nil {
		return util.JSONResponse{
			Code: http.StatusNotFound,
			JSON: spec.NotFound("The event has no valid member content"),
		}
	}
	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: response.Content,
	}
}
