// Command homedisk-server serves the homedisk HTTP API and its ops listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/homedisk/internal/config"
	"github.com/and161185/homedisk/internal/crypto"
	"github.com/and161185/homedisk/internal/logging"
	"github.com/and161185/homedisk/internal/metrics"
	httpserver "github.com/and161185/homedisk/internal/server/http"
	grpcserver "github.com/and161185/homedisk/internal/server/grpc"
	"github.com/and161185/homedisk/internal/service"
	"github.com/and161185/homedisk/internal/storage"
	"github.com/and161185/homedisk/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const healthInterval = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "config file (default $XDG_CONFIG_HOME/homedisk/config.toml)")
	dev := flag.Bool("dev", false, "console debug logging and gRPC reflection")
	flag.Parse()

	if err := run(*configPath, *dev); err != nil {
		fmt.Fprintln(os.Stderr, "homedisk-server:", err)
		os.Exit(1)
	}
}

func run(configPath string, dev bool) error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dev {
		cfg.Logging.Format = "console"
		cfg.Logging.Level = "debug"
		cfg.Ops.Reflection = true
	}

	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closeLog()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTP.Addr()),
		zap.String("db", cfg.Database.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Storage.Path, 0o750); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}

	m := metrics.New()
	st, err := openStore(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer st.close()

	scheme, err := crypto.ParseScheme(cfg.Auth.HashScheme)
	if err != nil {
		return err
	}
	codec, err := crypto.NewCodec(scheme)
	if err != nil {
		return err
	}
	tokens, err := token.NewServiceHours([]byte(cfg.JWT.Secret), cfg.JWT.Expires)
	if err != nil {
		return err
	}

	authSvc := service.NewAuthService(st.users, codec, tokens, st.limiter, cfg.Storage.Path)
	fileSvc := service.NewFileService(cfg.Storage.Path, storage.NewLister())

	api := httpserver.New(cfg.HTTP, httpserver.NewServer(authSvc, fileSvc, logger, m))

	var opsLis net.Listener
	if cfg.Ops.Addr != "" {
		if opsLis, err = net.Listen("tcp", cfg.Ops.Addr); err != nil {
			return fmt.Errorf("ops listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", api.Addr))
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return api.Shutdown(sctx)
	})

	if opsLis != nil {
		ops := grpcserver.NewOps(logger, cfg.Ops.Reflection)
		ops.SetServing(true)

		g.Go(func() error {
			logger.Info("ops listening", zap.String("addr", cfg.Ops.Addr), zap.Bool("reflection", cfg.Ops.Reflection))
			return ops.Serve(opsLis)
		})
		g.Go(func() error {
			ops.Watch(gctx, healthInterval, st.ping)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			ops.Shutdown(sctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
