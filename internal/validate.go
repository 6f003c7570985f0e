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

package internal

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/matrix-org/util"
)

// https://spec.matrix.org/v1.8/appendices/#identifier-grammar
const maxIdentifierLength = 255

var (
	ErrEventIDEmpty    = errors.New("event ID is empty")
	ErrRoomIDEmpty     = errors.New("room ID is empty")
	ErrIDTooLong       = fmt.Errorf("identifier too long: max %d characters", maxIdentifierLength)
	ErrInvalidEventID  = errors.New("event ID must start with '$'")
	ErrInvalidRoomID   = errors.New("room ID must be of the form !opaque:server")
	ErrInvalidSenderID = errors.New("sender must be a valid user ID")
)

// ValidateEventID checks that eventID looks like a Matrix event ID. Room
// versions 3+ use opaque hashes, so only the sigil and length are checked.
func ValidateEventID(eventID string) error {
	switch {
	case eventID == "":
		return ErrEventIDEmpty
	case len(eventID) > maxIdentifierLength:
		return ErrIDTooLong
	case eventID[0] != '$':
		return ErrInvalidEventID
	}
	return nil
}

// ValidateRoomID checks that roomID has the room sigil and a server part.
func ValidateRoomID(roomID string) error {
	switch {
	case roomID == "":
		return ErrRoomIDEmpty
	case len(roomID) > maxIdentifierLength:
		return ErrIDTooLong
	case roomID[0] != '!' || !strings.Contains(roomID[1:], ":"):
		return ErrInvalidRoomID
	}
	return nil
}

// ValidateSender checks that sender parses as a user ID. Historical user IDs
// are accepted since events from old rooms may carry them.
func ValidateSender(sender string) error {
	if _, err := spec.NewUserID(sender, true); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSenderID, err)
	}
	return nil
}

// ValidationResponse returns a 400 response describing err, or nil if err is nil.
func ValidationResponse(err error) *util.JSONResponse {
	if err == nil {
		return nil
	}
	return &util.JSONResponse{
		Code: http.StatusBadRequest,
		JSON: spec.InvalidParam(err.Error()),
	}
}
