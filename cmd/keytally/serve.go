package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/keytally/internal/api"
	"github.com/verte-zerg/keytally/internal/config"
	"github.com/verte-zerg/keytally/internal/store"
)

const (
	defaultAddr  = "127.0.0.1:8080"
	defaultRate  = 20.0
	defaultBurst = 40
)

var (
	serveAddr  string
	serveRate  float64
	serveBurst int
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the metrics REST API",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().Float64Var(&serveRate, "rate", defaultRate, "requests per second per client (0 disables)")
	cmd.Flags().IntVar(&serveBurst, "burst", defaultBurst, "rate limiter burst size")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Server.Addr)
	applyFloatConfig(cmd, "rate", &serveRate, fileCfg.Server.RateLimit)
	applyIntConfig(cmd, "burst", &serveBurst, fileCfg.Server.RateBurst)
	if serveAddr == "" {
		return fmt.Errorf("--addr must not be empty")
	}
	if serveRate < 0 {
		return fmt.Errorf("--rate must be >= 0")
	}
	if serveBurst < 0 {
		return fmt.Errorf("--burst must be >= 0")
	}

	logs := setupLogger(fileCfg.Log)
	defer closeLogger(logs)

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	srvCfg := api.Config{Addr: serveAddr, RateLimit: serveRate, RateBurst: serveBurst}
	router := api.NewRouter(api.NewHandler(st, api.NewMetrics(), logs.Logger), srvCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logErrf("Listening on http://%s (logs: %s)\n", serveAddr, logs.FilePath)
	return api.Serve(ctx, srvCfg, router, logs.Logger)
}
