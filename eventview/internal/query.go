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

	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/matrix-org/util"

	"github.com/matrix-org/eventview/eventview/api"
	"github.com/matrix-org/eventview/eventview/synctypes"
	"github.com/matrix-org/eventview/internal/eventutil"
)

// QueryDecryptedEvent implements api.EventViewInternalAPI
func (r *EventViewInternalAPI) QueryDecryptedEvent(
	ctx context.Context,
	request *api.QueryDecryptedEventRequest,
	response *api.QueryDecryptedEventResponse,
) error {
	if ev, ok := r.Caches.GetDecryptedEvent(request.EventID); ok {
		projectionsTotal.WithLabelValues(projectionKindDecrypted, projectionResultCached).Inc()
		response.Event = ev
		return nil
	}
	gen := r.decryptionGeneration()
	ev, err := r.loadEvent(ctx, request.EventID)
	if err != nil {
		return err
	}
	if ev == nil {
		return api.ErrUnknownEvent{EventID: request.EventID}
	}
	response.Event = eventutil.ToValidDecryptedEvent(ev)
	if response.Event == nil {
		projectionsTotal.WithLabelValues(projectionKindDecrypted, projectionResultUnresolved).Inc()
		util.GetLogger(ctx).WithField("event_id", request.EventID).Debug("Event cannot be projected to a decrypted event")
		return nil
	}
	projectionsTotal.WithLabelValues(projectionKindDecrypted, projectionResultOK).Inc()
	r.cacheDecrypted(response.Event, gen)
	return nil
}

// QueryMemberContent implements api.EventViewInternalAPI
func (r *EventViewInternalAPI) QueryMemberContent(
	ctx context.Context,
	request *api.QueryMemberContentRequest,
	response *api.QueryMemberContentResponse,
) error {
	if content, ok := r.Caches.GetMemberContent(request.EventID); ok {
		projectionsTotal.WithLabelValues(projectionKindMember, projectionResultCached).Inc()
		response.Content = content
		return nil
	}
	ev, err := r.loadEvent(ctx, request.EventID)
	if err != nil {
		return err
	}
	if ev == nil {
		return api.ErrUnknownEvent{EventID: request.EventID}
	}
	response.Content = r.memberContent(ctx, ev)
	return nil
}

// QueryRoomMembers implements api.EventViewInternalAPI
func (r *EventViewInternalAPI) QueryRoomMembers(
	ctx context.Context,
	request *api.QueryRoomMembersRequest,
	response *api.QueryRoomMembersResponse,
) error {
	events, err := r.DB.RoomMemberEvents(ctx, request.RoomID)
	if err != nil {
		return fmt.Errorf("r.DB.RoomMemberEvents: %w", err)
	}
	response.Members = make([]api.RoomMember, 0, len(events))
	for _, ev := range events {
		content, ok := r.Caches.GetMemberContent(ev.EventID)
		if ok {
			projectionsTotal.WithLabelValues(projectionKindMember, projectionResultCached).Inc()
		} else {
			content = r.memberContent(ctx, ev)
		}
		if content == nil {
			continue
		}
		if request.ExcludeLeft && !content.Membership.IsActive() {
			continue
		}
		response.Members = append(response.Members, api.RoomMember{
			UserID:  *ev.StateKey,
			EventID: ev.EventID,
			Content: content,
		})
	}
	return nil
}

func (r *EventViewInternalAPI) memberContent(ctx context.Context, ev *synctypes.ClientEvent) *synctypes.RoomMemberContent {
	var content *synctypes.RoomMemberContent
	if ev.Type == spec.MRoomMember {
		content = eventutil.FixedRoomMemberContent(ev)
	}
	if content == nil {
		projectionsTotal.WithLabelValues(projectionKindMember, projectionResultUnresolved).Inc()
		util.GetLogger(ctx).WithField("event_id", ev.EventID).Debug("Event has no valid member content")
		return nil
	}
	projectionsTotal.WithLabelValues(projectionKindMember, projectionResultOK).Inc()
	r.Caches.StoreMemberContent(ev.EventID, content)
	return content
}

// loadEvent reads an event from the database. Callers asking for the same
// event at the same time share one query and its result, which is safe as
// stored events are never modified after decoding.
func (r *EventViewInternalAPI) loadEvent(ctx context.Context, eventID string) (*synctypes.ClientEvent, error) {
	v, err, _ := r.loads.Do(eventID, func() (interface{}, error) {
		return r.DB.Event(ctx, eventID)
	})
	if err != nil {
		return nil, fmt.Errorf("r.DB.Event: %w", err)
	}
	ev, _ := v.(*synctypes.ClientEvent)
	return ev, nil
}
