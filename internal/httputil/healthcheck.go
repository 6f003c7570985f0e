// Copyright 2020 The Matrix.org Foundation C.I.C.
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

package httputil

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/matrix-org/eventview/setup/process"
)

// healthResponse is returned on requests to /health
type healthResponse struct {
	Code       int    `json:"code"`
	FirstError string `json:"error"`
	// Set once any check has failed since startup
	Degraded bool `json:"degraded"`
}

// HealthCheckHandler pings every given database connection. A failed ping
// marks the process as degraded.
func HealthCheckHandler(processCtx *process.ProcessContext, conns ...*sql.DB) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		resp := &healthResponse{
			Code:       http.StatusOK,
			FirstError: "",
		}
		rw.Header().Set("Content-Type", "application/json")
		if err := dbPingCheck(req, conns, resp); err != nil {
			processCtx.Degraded(err)
			rw.WriteHeader(resp.Code)
		}
		resp.Degraded = processCtx.IsDegraded()

		if err := json.NewEncoder(rw).Encode(resp); err != nil {
			logrus.WithError(err).Error("unable to encode health response")
		}
	}
}

func dbPingCheck(req *http.Request, conns []*sql.DB, resp *healthResponse) error {
	// check every database connection
	for _, conn := range conns {
		if err := conn.PingContext(req.Context()); err != nil {
			resp.Code = http.StatusInternalServerError
			resp.FirstError = err.Error()
			return err
		}
	}
	return nil
}
