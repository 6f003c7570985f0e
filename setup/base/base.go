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

package base

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"
	"github.com/kardianos/minwinsvc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/matrix-org/eventview/internal/httputil"
	"github.com/matrix-org/eventview/setup/config"
	"github.com/matrix-org/eventview/setup/process"
)

// HTTPServerTimeout is the maximum time a response may take to be written.
const HTTPServerTimeout = time.Minute * 5

// PlatformSanityChecks warns about platform settings which are known to
// cause problems.
func PlatformSanityChecks() {
	platformSanityChecks()
}

// SetupAndServeHTTP serves the event view API, /health and, if enabled,
// /metrics on the given address until the process is shut down.
func SetupAndServeHTTP(
	processContext *process.ProcessContext,
	cfg *config.EventView,
	routers httputil.Routers,
	address config.HTTPAddress,
	healthDBs ...*sql.DB,
) {
	addr, err := address.ListenAddress()
	if err != nil {
		logrus.WithError(err).Fatal("failed to parse listen address")
	}

	externalRouter := mux.NewRouter().SkipClean(true).UseEncodedPath()
	externalServ := &http.Server{
		Addr:         addr,
		WriteTimeout: HTTPServerTimeout,
		Handler:      externalRouter,
		BaseContext: func(_ net.Listener) context.Context {
			return processContext.Context()
		},
	}

	externalRouter.Handle("/health", httputil.HealthCheckHandler(processContext, healthDBs...)).Methods(http.MethodGet)
	if cfg.Global.Metrics.Enabled {
		externalRouter.Handle("/metrics", httputil.WrapHandlerInBasicAuth(promhttp.Handler(), httputil.BasicAuth{
			Username: cfg.Global.Metrics.BasicAuth.Username,
			Password: cfg.Global.Metrics.BasicAuth.Password,
		}))
	}

	var eventViewHandler http.Handler = routers.EventView
	if cfg.Global.Sentry.Enabled {
		sentryHandler := sentryhttp.New(sentryhttp.Options{
			Repanic: true,
		})
		eventViewHandler = sentryHandler.Handle(routers.EventView)
	}
	externalRouter.PathPrefix(cfg.API.PathPrefix).Handler(eventViewHandler)
	externalRouter.NotFoundHandler = routers.EventView.NotFoundHandler
	externalRouter.MethodNotAllowedHandler = routers.EventView.MethodNotAllowedHandler

	go func() {
		var externalShutdown atomic.Bool // RegisterOnShutdown can be called more than once
		logrus.Infof("Starting event view listener on %s", externalServ.Addr)
		processContext.ComponentStarted()
		externalServ.RegisterOnShutdown(func() {
			if externalShutdown.CompareAndSwap(false, true) {
				processContext.ComponentFinished()
				logrus.Infof("Stopped event view HTTP listener")
			}
		})
		if err := externalServ.ListenAndServe(); err != nil {
			if err != http.ErrServerClosed {
				logrus.WithError(err).Fatal("failed to serve HTTP")
			}
		}
		logrus.Infof("Stopped event view listener on %s", externalServ.Addr)
	}()

	minwinsvc.SetOnExit(processContext.ShutdownEventView)
	<-processContext.WaitForShutdown()

	logrus.Infof("Stopping HTTP listeners")
	_ = externalServ.Shutdown(context.Background())
	logrus.Infof("Stopped HTTP listeners")
}

// WaitForShutdown blocks until SIGINT, SIGTERM or a shutdown of the process
// context, then waits for all components to finish.
func WaitForShutdown(processCtx *process.ProcessContext, cfg *config.EventView) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigs:
	case <-processCtx.WaitForShutdown():
	}
	signal.Reset(syscall.SIGINT, syscall.SIGTERM)

	logrus.Warnf("Shutdown signal received")

	processCtx.ShutdownEventView()
	processCtx.WaitForComponentsToFinish()
	if cfg.Global.Sentry.Enabled {
		if !sentry.Flush(time.Second * 5) {
			logrus.Warnf("failed to flush all Sentry events!")
		}
	}

	logrus.Warnf("eventview is exiting now")
}
