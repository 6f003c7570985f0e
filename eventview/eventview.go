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

package eventview

import (
	"github.com/sirupsen/logrus"

	"github.com/matrix-org/eventview/eventview/api"
	"github.com/matrix-org/eventview/eventview/internal"
	"github.com/matrix-org/eventview/eventview/routing"
	"github.com/matrix-org/eventview/eventview/storage"
	"github.com/matrix-org/eventview/internal/caching"
	"github.com/matrix-org/eventview/internal/httputil"
	"github.com/matrix-org/eventview/internal/sqlutil"
	"github.com/matrix-org/eventview/setup/config"
	"github.com/matrix-org/eventview/setup/process"
)

// AddPublicRoutes sets up and registers HTTP handlers for the event view component.
func AddPublicRoutes(
	routers httputil.Routers,
	cfg *config.EventView,
	evAPI api.EventViewInternalAPI,
) {
	routing.Setup(routers.EventView, &cfg.API, evAPI)
}

// NewInternalAPI returns a concrete implementation of the internal API.
func NewInternalAPI(
	processContext *process.ProcessContext,
	cfg *config.EventView,
	cm *sqlutil.Connections,
	caches *caching.Caches,
) api.EventViewInternalAPI {
	dbProperties := &cfg.API.Database
	if dbProperties.ConnectionString == "" {
		dbProperties = &cfg.Global.DatabaseOptions
	}
	db, err := storage.NewDatabase(processContext, cm, dbProperties)
	if err != nil {
		logrus.WithError(err).Panicf("failed to connect to event view db")
	}
	return internal.NewEventViewInternalAPI(db, caches)
}
