package caching

import "github.com/matrix-org/eventview/eventview/synctypes"

// DecryptedEventsCache caches the projection of encrypted events that have
// been decrypted. Entries are copied on the way in and out, so callers may
// modify what they store or get back.
type DecryptedEventsCache interface {
	GetDecryptedEvent(eventID string) (*synctypes.ValidDecryptedEvent, bool)
	StoreDecryptedEvent(ev *synctypes.ValidDecryptedEvent)
	InvalidateDecryptedEvent(eventID string)
}

func (c Caches) GetDecryptedEvent(eventID string) (*synctypes.ValidDecryptedEvent, bool) {
	ev, ok := c.DecryptedEvents.Get(eventID)
	if !ok {
		return nil, false
	}
	return ev.Copy(), true
}

func (c Caches) StoreDecryptedEvent(ev *synctypes.ValidDecryptedEvent) {
	if ev != nil {
		c.DecryptedEvents.Set(ev.EventID, ev.Copy())
	}
}

// InvalidateDecryptedEvent must be called whenever the decryption result of
// an event is replaced.
func (c Caches) InvalidateDecryptedEvent(eventID string) {
	c.DecryptedEvents.Unset(eventID)
}
