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
	"net/http"

	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/matrix-org/util"

	"github.com/matrix-org/eventview/eventview/api"
)

// GetRoomMembers implements GET /v1/rooms/{roomID}/members
func GetRoomMembers(req *http.Request, evAPI api.EventViewInternalAPI, roomID string) util.JSONResponse {
	request := api.QueryRoomMembersRequest{
		RoomID: roomID,
	}
	switch req.URL.Query().Get("exclude_left") {
	case "", "false":
	case "true":
		request.ExcludeLeft = true
	default:
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: spec.InvalidParam("exclude_left must be true or false"),
		}
	}
	var response api.QueryRoomMembersResponse
	if err := evAPI.QueryRoomMembers(req.Context(), &request, &response); err != nil {
		return errorResponse(req, err, "QueryRoomMembers")
	}
	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: response,
	}
}
