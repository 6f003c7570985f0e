// Copyright 2021 The Matrix.org Foundation C.I.C.
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

package synctypes

import (
	"encoding/json"
	"fmt"

	"github.com/matrix-org/gomatrixserverlib/spec"
)

// Membership is the membership state of a user in a room.
type Membership string

const (
	MembershipJoin   Membership = spec.Join
	MembershipInvite Membership = spec.Invite
	MembershipLeave  Membership = spec.Leave
	MembershipBan    Membership = spec.Ban
	MembershipKnock  Membership = spec.Knock
)

// IsLeft returns true for the states in which the user is not part of the
// room. A kick is a leave sent by someone else.
func (m Membership) IsLeft() bool {
	return m == MembershipKnock || m == MembershipLeave || m == MembershipBan
}

// IsActive returns true if the user is either in the room or invited to it.
func (m Membership) IsActive() bool {
	return m == MembershipJoin || m == MembershipInvite
}

func (m *Membership) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("membership must be a string: %w", err)
	}
	switch Membership(s) {
	case MembershipJoin, MembershipInvite, MembershipLeave, MembershipBan, MembershipKnock:
		*m = Membership(s)
		return nil
	default:
		return fmt.Errorf("unknown membership %q", s)
	}
}

// RoomMemberContent is the content of an m.room.member event.
// https://spec.matrix.org/v1.8/client-server-api/#mroommember
type RoomMemberContent struct {
	Membership       Membership   `json:"membership"`
	DisplayName      *string      `json:"displayname,omitempty"`
	AvatarURL        *string      `json:"avatar_url,omitempty"`
	IsDirect         bool         `json:"is_direct,omitempty"`
	Reason           *string      `json:"reason,omitempty"`
	ThirdPartyInvite spec.RawJSON `json:"third_party_invite,omitempty"`
}

// NewRoomMemberContent decodes the content of an m.room.member event.
// Content without a recognised membership is rejected.
func NewRoomMemberContent(content spec.RawJSON) (*RoomMemberContent, error) {
	if !IsPresent(content) {
		return nil, fmt.Errorf("no member content")
	}
	var c RoomMemberContent
	if err := json.Unmarshal(content, &c); err != nil {
		return nil, err
	}
	if c.Membership == "" {
		return nil, fmt.Errorf("missing membership")
	}
	c.ThirdPartyInvite = CopyRawJSON(c.ThirdPartyInvite)
	return &c, nil
}

func (c *RoomMemberContent) CacheCost() int64 {
	cost := int64(len(c.Membership) + len(c.ThirdPartyInvite) + 1)
	for _, s := range []*string{c.DisplayName, c.AvatarURL, c.Reason} {
		if s != nil {
			cost += int64(len(*s))
		}
	}
	return cost
}

// Copy returns a deep copy of c.
func (c *RoomMemberContent) Copy() *RoomMemberContent {
	if c == nil {
		return nil
	}
	cp := *c
	cp.DisplayName = copyString(c.DisplayName)
	cp.AvatarURL = copyString(c.AvatarURL)
	cp.Reason = copyString(c.Reason)
	cp.ThirdPartyInvite = CopyRawJSON(c.ThirdPartyInvite)
	return &cp
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
