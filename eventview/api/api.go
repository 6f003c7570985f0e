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

package api

import (
	"context"
	"fmt"

	"github.com/matrix-org/eventview/eventview/synctypes"
)

// EventViewInternalAPI stores client events and serves the views derived
// from them.
type EventViewInternalAPI interface {
	// Store events and any decryption results attached to them.
	PerformStoreEvents(
		ctx context.Context,
		request *PerformStoreEventsRequest,
		response *PerformStoreEventsResponse,
	) error

	// Replace the decryption result of a stored event.
	PerformStoreDecryption(
		ctx context.Context,
		request *PerformStoreDecryptionRequest,
		response *PerformStoreDecryptionResponse,
	) error

	// Project a stored encrypted event into a ValidDecryptedEvent.
	QueryDecryptedEvent(
		ctx context.Context,
		request *QueryDecryptedEventRequest,
		response *QueryDecryptedEventResponse,
	) error

	// Resolve the membership content of a stored m.room.member event.
	QueryMemberContent(
		ctx context.Context,
		request *QueryMemberContentRequest,
		response *QueryMemberContentResponse,
	) error

	// Resolve the latest membership of every user in a room.
	QueryRoomMembers(
		ctx context.Context,
		request *QueryRoomMembersRequest,
		response *QueryRoomMembersResponse,
	) error
}

// ErrInvalidEvent is returned when an event is missing a field needed to
// store it.
type ErrInvalidEvent struct {
	EventID string
	Reason  string
}

func (e ErrInvalidEvent) Error() string {
	if e.EventID == "" {
		return fmt.Sprintf("invalid event: %s", e.Reason)
	}
	return fmt.Sprintf("invalid event %s: %s", e.EventID, e.Reason)
}

// ErrUnknownEvent is returned when an operation refers to an event which
// was never stored.
type ErrUnknownEvent struct {
	EventID string
}

func (e ErrUnknownEvent) Error() string {
	return fmt.Sprintf("unknown event %s", e.EventID)
}

type PerformStoreEventsRequest struct {
	Events []*synctypes.ClientEvent `json:"events"`
}

type PerformStoreEventsResponse struct {
	// IDs of the events which were not already stored
	Stored []string `json:"stored"`
}

type PerformStoreDecryptionRequest struct {
	EventID string                      `json:"event_id"`
	Result  *synctypes.DecryptionResult `json:"result"`
}

type PerformStoreDecryptionResponse struct {
}

type QueryDecryptedEventRequest struct {
	EventID string `json:"event_id"`
}

type QueryDecryptedEventResponse struct {
	// Event is nil if the stored event cannot be projected.
	Event *synctypes.ValidDecryptedEvent `json:"event,omitempty"`
}

type QueryMemberContentRequest struct {
	EventID string `json:"event_id"`
}

type QueryMemberContentResponse struct {
	// Content is nil if no membership could be resolved.
	Content *synctypes.RoomMemberContent `json:"content,omitempty"`
}

type QueryRoomMembersRequest struct {
	RoomID string `json:"room_id"`
	// Only return users which are joined or invited.
	ExcludeLeft bool `json:"exclude_left"`
}

type QueryRoomMembersResponse struct {
	Members []RoomMember `json:"members"`
}

type RoomMember struct {
	UserID  string                       `json:"user_id"`
	EventID string                       `json:"event_id"`
	Content *synctypes.RoomMemberContent `json:"content"`
}
