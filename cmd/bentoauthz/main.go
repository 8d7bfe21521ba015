// Command bentoauthz runs the centralized authorization decision service.
// It exposes a serve/version cobra command pair, with configuration
// loaded via viper.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bentoauthz/internal/config"
	"bentoauthz/internal/constants"
	"bentoauthz/internal/decisionlog"
	"bentoauthz/internal/logging"
	"bentoauthz/internal/registry"
	"bentoauthz/internal/server"
	"bentoauthz/internal/store"
	"bentoauthz/internal/token"
	"bentoauthz/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:   constants.AppName,
		Short: constants.AppDisplayName,
	}
	root.AddCommand(serveCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s %s\n", constants.AppDisplayName, version.Version)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the authorization decision service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	log := logging.New(constants.DefaultLogLevel, os.Stdout)
	log.Info("%s version %s starting", constants.AppDisplayName, version.Version)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.LogEffectiveValues(log)

	if len(cfg.Superusers) == 0 {
		log.Warn("╔══════════════════════════════════════════════════════════════╗")
		log.Warn("║  No BENTO_AUTHZ_SUPERUSERS configured.                        ║")
		log.Warn("║  No caller can create the first grant until one is set.      ║")
		log.Warn("╚══════════════════════════════════════════════════════════════╝")
	}

	pg, err := store.Open(cfg.DatabaseURI, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	var decisionsDB *sql.DB
	if db, err := sql.Open("postgres", cfg.DatabaseURI); err == nil {
		if _, err := db.Exec(decisionlog.Schema); err == nil {
			decisionsDB = db
		} else {
			log.Warn("decision log schema not applied: %v", err)
		}
	}
	decisions := decisionlog.New(decisionsDB, log)

	reg := registry.Default()

	var verifier *token.Verifier
	if !cfg.DisableTokenVerification {
		verifier = token.New(cfg.OpenIDConfigURL, cfg.TokenAudience, cfg.ClockLeeway, cfg.JWKSTTL, strings.Split(constants.DefaultAllowedAlgs, ","))
	} else {
		log.Warn("DISABLE_TOKEN_VERIFICATION is set — bearer tokens are decoded without signature checks")
	}

	app := server.NewApp(cfg, log, pg, reg, verifier, decisions)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := server.NewServer(app, addr)

	log.Info("starting %s", constants.AppDisplayName)
	return srv.Start()
}
