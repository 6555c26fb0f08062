package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"
	"camlink/internal/core/services"
	httphandlers "camlink/internal/handlers/http"
	"camlink/internal/infrastructure/adapters"
	"camlink/internal/infrastructure/gateway"
	"camlink/internal/infrastructure/middleware"
	"camlink/internal/infrastructure/monitoring"
	"camlink/internal/infrastructure/repositories"
	"camlink/internal/infrastructure/surface"
	"camlink/pkg/config"
	"camlink/pkg/logger"
	"camlink/pkg/tracing"
	"camlink/pkg/utils"
	"camlink/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to YAML config")
		streams    = flag.String("streams", "", "comma-separated stream IDs to watch (default: all enabled monitors)")
		output     = flag.String("output", "", "directory for received media dumps (default: discard frames)")
		listOnly   = flag.Bool("list", false, "list the gateway's monitors and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if err := run(cfg, log, zapLogger, *streams, *output, *listOnly); err != nil {
		log.Fatalw("viewer failed", "error", err)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger, zapLogger *zap.Logger, streamsFlag, output string, listOnly bool) error {
	if err := validation.ValidateGatewayURL(cfg.Gateway.URL); err != nil {
		return err
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "camlink",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tp.Shutdown(ctx)
	}()

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		return fmt.Errorf("repositories: %w", err)
	}
	defer repoFactory.Close()

	profileRepo := repoFactory.CreateProfileRepository()
	profile := profileFromConfig(cfg)
	ctx := context.Background()
	if err := profileRepo.Save(ctx, profile); err != nil {
		log.Warnw("failed to persist profile", "error", err)
	}

	tokenService := services.NewTokenService()
	if err := tokenService.CheckProfile(profile); err != nil {
		log.Warnw("gateway token check failed",
			"error", err,
			"token", utils.MaskToken(profile.Token),
		)
	}

	gw := gateway.NewClient(httpBaseURL(cfg.Gateway.URL), cfg.Gateway.Token, cfg.Gateway.RequestTimeout, log)

	if listOnly {
		return printMonitors(ctx, gw)
	}

	streamIDs, err := resolveStreams(ctx, gw, streamsFlag, log)
	if err != nil {
		return err
	}
	if len(streamIDs) == 0 {
		return fmt.Errorf("no streams to watch")
	}

	var collector services.ConnectionMetrics
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	}

	adapterFactory := adapters.NewFactory(adapters.Config{
		ICEServers:      iceServers(cfg),
		HLSPollInterval: cfg.Connection.HLSPollInterval,
		MJPEGMaxFPS:     cfg.Connection.MJPEGMaxFPS,
	}, log)

	tracks := domain.TrackSelection{
		Video: cfg.Connection.Video,
		Audio: cfg.Connection.Audio,
	}

	if output != "" {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return fmt.Errorf("output directory: %w", err)
		}
	}

	sessions := services.NewSessionManager(log)
	var surfaces []*surface.FileSurface
	for _, streamID := range streamIDs {
		ctrl := services.NewConnectionController(adapterFactory, collector, log)

		var sink ports.Surface
		if output != "" {
			fs, err := surface.NewFileSurface(filepath.Join(output, string(streamID)+".bin"))
			if err != nil {
				return fmt.Errorf("output for %s: %w", streamID, err)
			}
			surfaces = append(surfaces, fs)
			sink = fs
		} else {
			sink = surface.NewNullSurface()
		}

		ctrl.SetSurface(sink)
		session := sessions.Open(streamID, ctrl)

		sid := streamID
		ctrl.OnChange(func(snap domain.ConnectionSnapshot) {
			log.Infow("connection state",
				"session_id", session.ID,
				"stream_id", sid,
				"state", snap.State,
				"protocol", snap.Protocol,
				"error", snap.Error,
				"for", utils.FormatDuration(time.Since(snap.Since)),
			)
		})

		ctrl.Start(profile.Request(streamID, tracks))
	}
	defer func() {
		for _, fs := range surfaces {
			fs.CloseFile()
		}
	}()

	srv := controlServer(cfg, log, zapLogger, sessions, repoFactory.HealthCheck)
	serverErr := make(chan error, 1)
	go func() {
		log.Infow("control API listening", "address", cfg.Control.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("control API: %w", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Control.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("control API shutdown", "error", err)
	}
	sessions.CloseAll()
	return nil
}

func controlServer(cfg *config.Config, log *zap.SugaredLogger, zapLogger *zap.Logger, sessions *services.SessionManager, ready func(context.Context) error) *http.Server {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggingMiddleware(logger.NewContextLogger(zapLogger)),
		middleware.TracingMiddleware(),
		middleware.NewRateLimitMiddleware(cfg),
		middleware.ErrorHandlerMiddleware(log),
	)
	httphandlers.NewStreamHandler(sessions, ready).SetupRoutes(router)

	return &http.Server{
		Addr:         cfg.Control.Address,
		Handler:      router,
		ReadTimeout:  cfg.Control.ReadTimeout,
		WriteTimeout: cfg.Control.WriteTimeout,
	}
}

func profileFromConfig(cfg *config.Config) *domain.Profile {
	protocols := make([]domain.Protocol, 0, len(cfg.Connection.Protocols))
	for _, name := range cfg.Connection.Protocols {
		if p, ok := domain.ParseProtocol(name); ok {
			protocols = append(protocols, p)
		}
	}
	return &domain.Profile{
		ID:             "default",
		Name:           "default",
		GatewayURL:     cfg.Gateway.URL,
		Token:          cfg.Gateway.Token,
		Protocols:      protocols,
		EnableFallback: cfg.Connection.EnableFallback,
	}
}

// resolveStreams turns the -streams flag into stream IDs, defaulting to
// every enabled monitor on the gateway.
func resolveStreams(ctx context.Context, gw ports.GatewayAPI, streamsFlag string, log *zap.SugaredLogger) ([]domain.StreamID, error) {
	if streamsFlag != "" {
		var out []domain.StreamID
		for _, raw := range strings.Split(streamsFlag, ",") {
			id := strings.TrimSpace(raw)
			if err := validation.ValidateStreamID(id); err != nil {
				return nil, fmt.Errorf("stream %q: %w", raw, err)
			}
			out = append(out, domain.StreamID(id))
		}
		return out, nil
	}

	monitors, err := gw.ListMonitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing monitors: %w", err)
	}
	var out []domain.StreamID
	for _, m := range monitors {
		if m.Enabled {
			out = append(out, m.StreamID)
		}
	}
	log.Infow("watching all enabled monitors", "count", len(out))
	return out, nil
}

func printMonitors(ctx context.Context, gw ports.GatewayAPI) error {
	monitors, err := gw.ListMonitors(ctx)
	if err != nil {
		return err
	}
	for _, m := range monitors {
		state := "disabled"
		if m.Enabled {
			state = "enabled"
		}
		fmt.Printf("%-20s %-30s %-12s %s\n", m.ID, utils.Truncate(m.Name, 30), state, m.StreamID)
	}
	return nil
}

// httpBaseURL converts a ws(s) gateway URL into the http(s) base the REST
// client needs.
func httpBaseURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "ws://"):
		return "http://" + strings.TrimPrefix(raw, "ws://")
	case strings.HasPrefix(raw, "wss://"):
		return "https://" + strings.TrimPrefix(raw, "wss://")
	default:
		return raw
	}
}

func iceServers(cfg *config.Config) []webrtc.ICEServer {
	if len(cfg.WebRTC.ICEServers) == 0 {
		return []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	out := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.ICEServers))
	for _, s := range cfg.WebRTC.ICEServers {
		out = append(out, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out
}
