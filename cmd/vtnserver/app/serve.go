// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/vtn-core/pkg/api"
	"github.com/stacklok/vtn-core/pkg/auth"
	"github.com/stacklok/vtn-core/pkg/auth/token"
	"github.com/stacklok/vtn-core/pkg/config"
	"github.com/stacklok/vtn-core/pkg/logger"
	"github.com/stacklok/vtn-core/pkg/oauth2"
	"github.com/stacklok/vtn-core/pkg/services"
	"github.com/stacklok/vtn-core/pkg/store/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the VTN server",
	Long:  "Start the VTN server: the REST API described in the OpenADR 3.0 VTN binding.",
	RunE:  runServe,
}

// defaultGracefulTimeout bounds how long in-flight requests get to
// finish once a shutdown signal arrives.
const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 35 * time.Second
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("database-url", "", "Path to the sqlite database file (env DATABASE_URL)")
	serveCmd.Flags().String("http-port", "", "Port to listen on (env HTTP_PORT)")

	for _, flagName := range []string{"database-url", "http-port"} {
		if err := viper.BindPFlag(flagName, serveCmd.Flags().Lookup(flagName)); err != nil {
			logger.Fatalf("failed to bind %s flag: %v", flagName, err)
		}
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	v := viper.GetViper()
	if dbURL := v.GetString("database-url"); dbURL != "" {
		v.Set("DATABASE_URL", dbURL)
	}
	if port := v.GetString("http-port"); port != "" {
		v.Set("HTTP_PORT", port)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	stores, err := sqlite.OpenStores(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Errorf("closing database: %v", err)
		}
	}()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("constructing token verifier: %w", err)
	}

	var issuer *oauth2.Issuer
	if cfg.OAuthType == config.OAuthTypeInternal {
		issuer = oauth2.NewIssuer(stores.Credentials, stores.Users, cfg.OAuthSecret, time.Hour)
	}

	svcs := api.Services{
		Programs:  services.NewProgramService(stores.Programs),
		Events:    services.NewEventService(stores.Events, stores.Programs),
		Reports:   services.NewReportService(stores.Reports, stores.Programs, stores.VENs),
		VENs:      services.NewVENService(stores.VENs),
		Resources: services.NewResourceService(stores.Resources),
		Users:     services.NewUserService(stores.Users),
		Issuer:    issuer,
	}

	router := api.NewRouter(svcs, verifier)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infof("vtnserver listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-groupCtx.Done():
			return nil
		}

		logger.Info("shutting down vtnserver")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	logger.Info("vtnserver shutdown complete")
	return nil
}

// newVerifier constructs the Token Verifier from cfg, translating
// pkg/config's key-type alias into pkg/auth/token's.
func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	var keyType token.KeyType
	switch cfg.OAuthKeyType {
	case config.KeyTypeHMAC:
		keyType = token.KeyTypeHMAC
	case config.KeyTypeRSA:
		keyType = token.KeyTypeRSA
	case config.KeyTypeEC:
		keyType = token.KeyTypeEC
	case config.KeyTypeED:
		keyType = token.KeyTypeED
	}

	return token.NewVerifier(ctx, token.Config{
		KeyType:        keyType,
		HMACSecret:     cfg.OAuthSecret,
		JWKSURL:        cfg.JWKSLocation,
		ValidAudiences: cfg.ValidAudiences,
		Internal:       cfg.OAuthType == config.OAuthTypeInternal,
	})
}
