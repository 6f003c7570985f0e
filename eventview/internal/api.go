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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/matrix-org/eventview/eventview/storage"
	"github.com/matrix-org/eventview/eventview/synctypes"
	"github.com/matrix-org/eventview/internal/caching"
)

const (
	projectionKindMember    = "member"
	projectionKindDecrypted = "decrypted"

	projectionResultOK         = "ok"
	projectionResultUnresolved = "unresolved"
	projectionResultCached     = "cached"
)

var projectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "eventview",
		Name:      "projections_total",
		Help:      "Number of events projected into member contents or decrypted events",
	},
	[]string{"kind", "result"},
)

func init() {
	prometheus.MustRegister(projectionsTotal)
}

// EventViewInternalAPI is an implementation of api.EventViewInternalAPI
type EventViewInternalAPI struct {
	DB     storage.Database
	Caches *caching.Caches

	// loads collapses concurrent database reads of the same event on a
	// cache miss.
	loads singleflight.Group

	// decryptionGen is bumped whenever a decryption result is replaced. A
	// projection built from a read that started before the bump is not cached.
	decryptionMu  sync.Mutex
	decryptionGen uint64
}

func NewEventViewInternalAPI(db storage.Database, caches *caching.Caches) *EventViewInternalAPI {
	return &EventViewInternalAPI{
		DB:     db,
		Caches: caches,
	}
}

func (r *EventViewInternalAPI) decryptionGeneration() uint64 {
	r.decryptionMu.Lock()
	defer r.decryptionMu.Unlock()
	return r.decryptionGen
}

// cacheDecrypted stores ev unless a decryption result was replaced since gen
// was taken.
func (r *EventViewInternalAPI) cacheDecrypted(ev *synctypes.ValidDecryptedEvent, gen uint64) {
	r.decryptionMu.Lock()
	defer r.decryptionMu.Unlock()
	if gen != r.decryptionGen {
		return
	}
	r.Caches.StoreDecryptedEvent(ev)
}

// invalidateDecrypted drops the cached projection of an event whose
// decryption result has been replaced. Reads already in flight are detached
// so later queries see the new result.
func (r *EventViewInternalAPI) invalidateDecrypted(eventID string) {
	r.loads.Forget(eventID)
	r.decryptionMu.Lock()
	defer r.decryptionMu.Unlock()
	r.decryptionGen++
	r.Caches.InvalidateDecryptedEvent(eventID)
}
