package caching

import "github.com/matrix-org/eventview/eventview/synctypes"

// MemberContentsCache caches fixed m.room.member contents by event ID.
// Events never change once stored, so neither do the entries. Entries are
// copied on the way in and out.
type MemberContentsCache interface {
	GetMemberContent(eventID string) (*synctypes.RoomMemberContent, bool)
	StoreMemberContent(eventID string, content *synctypes.RoomMemberContent)
}

func (c Caches) GetMemberContent(eventID string) (*synctypes.RoomMemberContent, bool) {
	content, ok := c.MemberContents.Get(eventID)
	if !ok {
		return nil, false
	}
	return content.Copy(), true
}

func (c Caches) StoreMemberContent(eventID string, content *synctypes.RoomMemberContent) {
	if content != nil {
		c.MemberContents.Set(eventID, content.Copy())
	}
}
