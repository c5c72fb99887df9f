// Copyright 2026 The OpenTrusty Authors
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

// Command server runs a demo OAuth2 authorization server wiring the
// sans-I/O grant engine to net/http via the oauth2http adapter, backed by
// the in-memory primitives. It exists to exercise the full stack end to
// end, not as a production deployment.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opentrusty/oauthcore/authorizer"
	"github.com/opentrusty/oauthcore/endpoint"
	"github.com/opentrusty/oauthcore/extensions"
	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/internal/audit"
	"github.com/opentrusty/oauthcore/internal/config"
	"github.com/opentrusty/oauthcore/internal/observability/logger"
	"github.com/opentrusty/oauthcore/internal/observability/metrics"
	"github.com/opentrusty/oauthcore/internal/observability/tracing"
	"github.com/opentrusty/oauthcore/issuer"
	"github.com/opentrusty/oauthcore/oauth2http"
	"github.com/opentrusty/oauthcore/postgres"
	"github.com/opentrusty/oauthcore/registrar"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting oauthcore demo authorization server")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	if tracer != nil {
		defer tracer.Shutdown(ctx)
	}

	if _, err := metrics.New(ctx, metrics.Config{Enabled: cfg.Observability.OTELEnabled}, cfg.Observability.ServiceName); err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	clients := registrar.NewClientMap()
	clients.SetPasswordPolicy(&registrar.Argon2Policy{
		Memory:      cfg.Security.Argon2Memory,
		Iterations:  cfg.Security.Argon2Iterations,
		Parallelism: cfg.Security.Argon2Parallelism,
		SaltLength:  cfg.Security.Argon2SaltLength,
		KeyLength:   cfg.Security.Argon2KeyLength,
	})
	demoClientID, err := clients.Register(registrar.Client{
		ClientID:     "demo-client",
		RedirectURIs: []string{"http://localhost:8021/endpoint"},
		DefaultScope: grant.MustParseScope("default"),
		Type:         registrar.Confidential,
		Passphrase:   []byte("demo-secret"),
	})
	if err != nil {
		slog.Error("failed to register demo client", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("registered demo client", logger.ClientID(demoClientID))

	codes := authorizer.NewMapAuthorizer(nil, cfg.Grant.CodeLifetime)
	tokens := issuer.NewTokenMap(nil, cfg.Grant.TokenLifetime)

	addons := extensions.NewList()
	addons.AddAuthorization(extensions.PKCE{})
	addons.AddAccessToken(extensions.PKCE{})

	ep := &endpoint.Endpoint{
		Registrar:                          oauth2http.NewLockedRegistrar(clients),
		Authorizer:                         oauth2http.NewLockedAuthorizer(codes),
		Issuer:                             oauth2http.NewLockedIssuer(tokens),
		Solicitor:                          oauth2http.AutoApproveSolicitor{},
		Scopes:                             []grant.Scope{grant.MustParseScope("default")},
		Extensions:                         addons,
		AllowCredentialsInBody:             cfg.Grant.AllowCredentialsInBody,
		IssueClientCredentialsRefreshToken: cfg.Grant.IssueRefreshForClientCredentials,
		Realm:                              cfg.Server.Realm,
		Logger:                             slog.Default(),
	}

	handler, err := oauth2http.NewHandler(ep)
	if err != nil {
		slog.Error("failed to build oauth2 handler", logger.Error(err))
		os.Exit(1)
	}
	handler.Audit = audit.NewSlogLogger()

	rateLimiter := oauth2http.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	rlCtx, stopRL := context.WithCancel(ctx)
	defer stopRL()
	go rateLimiter.Run(rlCtx)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Group(func(r chi.Router) {
		r.Use(oauth2http.RateLimit(rateLimiter))
		r.Mount("/", handler.Router())
	})
	router.With(handler.RequireBearer).Get("/protected", func(w http.ResponseWriter, r *http.Request) {
		g, _ := oauth2http.GrantFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"owner_id":%q,"scope":%q}`, g.OwnerID, g.Scope.String())
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("listening", logger.Component("server"), logger.Operation("listen"))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}
	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("migration successful.")
	return nil
}
