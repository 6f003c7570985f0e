// Copyright 2017 Vector Creations Ltd
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

package main

import (
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/matrix-org/eventview/eventview"
	"github.com/matrix-org/eventview/internal"
	"github.com/matrix-org/eventview/internal/caching"
	"github.com/matrix-org/eventview/internal/httputil"
	"github.com/matrix-org/eventview/internal/sqlutil"
	"github.com/matrix-org/eventview/setup"
	basepkg "github.com/matrix-org/eventview/setup/base"
	"github.com/matrix-org/eventview/setup/config"
	"github.com/matrix-org/eventview/setup/process"
)

func main() {
	cfg := setup.ParseFlags()

	configErrors := &config.ConfigErrors{}
	cfg.Verify(configErrors)
	if len(*configErrors) > 0 {
		for _, err := range *configErrors {
			logrus.Errorf("Configuration error: %s", err)
		}
		logrus.Fatalf("Failed to start due to configuration errors")
	}
	processCtx := process.NewProcessContext()

	internal.SetupStdLogging()
	internal.SetupHookLogging(cfg.Logging, "eventview")

	basepkg.PlatformSanityChecks()

	logrus.Infof("eventview version %s", internal.VersionString())

	// setup sentry
	if cfg.Global.Sentry.Enabled {
		logrus.Info("Setting up Sentry for debugging...")
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Global.Sentry.DSN,
			Environment:      cfg.Global.Sentry.Environment,
			Debug:            true,
			Release:          "eventview@" + internal.VersionString(),
			AttachStacktrace: true,
		})
		if err != nil {
			logrus.WithError(err).Panic("failed to start Sentry")
		}
	}

	// prepare required dependencies
	cm := sqlutil.NewConnectionManager(processCtx, cfg.Global.DatabaseOptions)
	routers := httputil.NewRouters()

	caches, err := caching.NewRistrettoCache(cfg.Global.Cache.EstimatedMaxSize, cfg.Global.Cache.MaxAge, cfg.Global.Metrics.Enabled)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create caches")
	}
	evAPI := eventview.NewInternalAPI(processCtx, cfg, cm, caches)
	eventview.AddPublicRoutes(routers, cfg, evAPI)

	dbProperties := &cfg.API.Database
	if dbProperties.ConnectionString == "" {
		dbProperties = &cfg.Global.DatabaseOptions
	}
	db, _, err := cm.Connection(dbProperties)
	if err != nil {
		logrus.WithError(err).Fatal("failed to get database connection")
	}

	upCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eventview",
		Name:      "up",
		ConstLabels: map[string]string{
			"version": internal.VersionString(),
		},
	})
	upCounter.Add(1)
	prometheus.MustRegister(upCounter)

	go func() {
		basepkg.SetupAndServeHTTP(processCtx, cfg, routers, cfg.API.Listen, db)
	}()

	// We want to block forever to let the HTTP handler serve the APIs
	basepkg.WaitForShutdown(processCtx, cfg)
}
