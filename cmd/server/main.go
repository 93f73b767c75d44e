package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/enrichman/httpgrace"
	"github.com/gin-gonic/gin"

	route "github.com/uksgomel/uks_checker/internal/api/route"
	appctx "github.com/uksgomel/uks_checker/internal/app"
	"github.com/uksgomel/uks_checker/internal/bot"
	"github.com/uksgomel/uks_checker/internal/cache"
	"github.com/uksgomel/uks_checker/internal/config"
	"github.com/uksgomel/uks_checker/internal/errreport"
	"github.com/uksgomel/uks_checker/internal/logger"
	"github.com/uksgomel/uks_checker/internal/notifier"
	"github.com/uksgomel/uks_checker/internal/repository"
)

// Long polling holds a request for 30s and uploads may run longer.
const telegramClientTimeout = 3 * time.Minute

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	if err := logger.SetLevel(cfg.Misc.LogLevel); err != nil {
		logger.WithComponent("main").Warnf("invalid log level '%s', keeping '%s': %v", cfg.Misc.LogLevel, logger.Logger.GetLevel(), err)
	}
	logger.WithComponent("main").Debugf("log level set to: %s", logger.Logger.GetLevel())

	reporter := errreport.FromEnv(logger.Logger)
	defer reporter.Flush()

	repo, err := repository.NewJSONRepository(cfg.Data.StateFile)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init repository: %v", err)
	}

	st, err := repo.Load(context.Background())
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot load state file: %v", err)
	}
	logger.WithComponent("main").Infof("state loaded from %s", repo.Path())

	store, err := cache.NewStore(*st, repo)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init state cache: %v", err)
	}

	botAPI, err := notifier.NewBotAPI(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint, &http.Client{Timeout: telegramClientTimeout})
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init telegram bot: %v", err)
	}
	logger.WithComponent("main").Infof("authorized as @%s", botAPI.Self.UserName)

	tg, err := notifier.NewTelegramNotifier(botAPI)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init notifier: %v", err)
	}
	dispatcher, err := notifier.NewDispatcher(tg, cfg.Telegram.ChatID)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init dispatcher: %v", err)
	}

	detector, err := newDetector(cfg, store, dispatcher, reporter)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init detector: %v", err)
	}

	var commands appctx.CommandRunner
	if cfg.Telegram.Commands {
		b, err := bot.New(botAPI, detector, dispatcher, cfg.Telegram.ChatID)
		if err != nil {
			logger.WithComponent("main").Fatalf("cannot init command bot: %v", err)
		}
		commands = b
	}

	app, err := appctx.New(cfg, repo, store, detector, commands)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}
	defer app.Shutdown()

	if err := app.StartWatchers(); err != nil {
		logger.WithComponent("main").Fatalf("cannot start background workers: %v", err)
	}

	if !cfg.Server.Enabled {
		logger.WithComponent("main").Info("HTTP server disabled, running until signalled")
		ctx, stop := signal.NotifyContext(app.BaseCtx, syscall.SIGTERM, syscall.SIGINT)
		defer stop()
		<-ctx.Done()
		return
	}

	gin.SetMode(cfg.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := route.SetupRoutes(app, reporter)
	srv := createGraceHttpServer(app.BaseCtx, "main-server", cfg.Server, r)

	logger.WithComponent("main").Infof("App will run on port: %d", cfg.Server.Port)
	if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithComponent("main").Fatal(err)
	}
}

func createGraceHttpServer(ctx context.Context, name string, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	srv := httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
	return srv
}
