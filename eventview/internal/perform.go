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
	"context"
	"fmt"

	"github.com/matrix-org/util"
	"github.com/tidwall/gjson"

	"github.com/matrix-org/eventview/eventview/api"
	"github.com/matrix-org/eventview/eventview/synctypes"
)

// PerformStoreEvents implements api.EventViewInternalAPI
func (r *EventViewInternalAPI) PerformStoreEvents(
	ctx context.Context,
	request *api.PerformStoreEventsRequest,
	response *api.PerformStoreEventsResponse,
) error {
	for _, ev := range request.Events {
		if err := validateEvent(ev); err != nil {
			return err
		}
	}
	logger := util.GetLogger(ctx)
	for _, ev := range request.Events {
		stored, err := r.DB.StoreEvent(ctx, ev)
		if err != nil {
			return fmt.Errorf("r.DB.StoreEvent: %w", err)
		}
		if ev.Decryption != nil {
			r.invalidateDecrypted(ev.EventID)
		}
		if !stored {
			logger.WithField("event_id", ev.EventID).Debug("Event already stored")
			continue
		}
		response.Stored = append(response.Stored, ev.EventID)
	}
	return nil
}

// PerformStoreDecryption implements api.EventViewInternalAPI
func (r *EventViewInternalAPI) PerformStoreDecryption(
	ctx context.Context,
	request *api.PerformStoreDecryptionRequest,
	response *api.PerformStoreDecryptionResponse,
) error {
	if request.Result == nil {
		return api.ErrInvalidEvent{EventID: request.EventID, Reason: "missing decryption result"}
	}
	ev, err := r.DB.Event(ctx, request.EventID)
	if err != nil {
		return fmt.Errorf("r.DB.Event: %w", err)
	}
	if ev == nil {
		return api.ErrUnknownEvent{EventID: request.EventID}
	}
	if !ev.IsEncrypted() {
		return api.ErrInvalidEvent{EventID: request.EventID, Reason: "event is not encrypted"}
	}
	if err = r.DB.StoreDecryptionResult(ctx, request.EventID, request.Result); err != nil {
		return fmt.Errorf("r.DB.StoreDecryptionResult: %w", err)
	}
	r.invalidateDecrypted(request.EventID)
	return nil
}

func validateEvent(ev *synctypes.ClientEvent) error {
	switch {
	case ev == nil:
		return api.ErrInvalidEvent{Reason: "null event"}
	case ev.EventID == "":
		return api.ErrInvalidEvent{Reason: "missing event_id"}
	case ev.RoomID == "":
		return api.ErrInvalidEvent{EventID: ev.EventID, Reason: "missing room_id"}
	case ev.Type == "":
		return api.ErrInvalidEvent{EventID: ev.EventID, Reason: "missing type"}
	case ev.Sender == "":
		return api.ErrInvalidEvent{EventID: ev.EventID, Reason: "missing sender"}
	case !gjson.ParseBytes(ev.Content).IsObject():
		return api.ErrInvalidEvent{EventID: ev.EventID, Reason: "content must be an object"}
	}
	return nil
}
