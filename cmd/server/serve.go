package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"projectron-api/internal/auth"
	"projectron-api/internal/cache"
	"projectron-api/internal/database"
	"projectron-api/internal/diagram"
	"projectron-api/internal/email"
	"projectron-api/internal/handlers"
	"projectron-api/internal/llm"
	"projectron-api/internal/planner"
	"projectron-api/internal/progress"
	"projectron-api/internal/ratelimit"
	"projectron-api/internal/realtime"
	"projectron-api/internal/resilience"
	"projectron-api/internal/routes"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	oauthStateTTL   = 10 * time.Minute
	svgCacheBytes   = 64 << 20
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	// Init database
	if err := database.InitDB(cfg.Database.Path, log); err != nil {
		return err
	}
	db := database.GetDB()
	auth.Configure(cfg.JWT)

	g, ctx := errgroup.WithContext(ctx)

	// Realtime events go through Redis when several instances share users
	hub := realtime.GetHub()
	var events realtime.Publisher = hub
	if cfg.Redis.Addr != "" {
		rdb := realtime.NewRedisClient(cfg.Redis)
		defer rdb.Close()
		bridge := realtime.NewRedisBridge(rdb, cfg.Redis.Channel, hub, log)
		events = bridge
		g.Go(func() error {
			if err := bridge.Run(ctx); err != nil {
				log.Warn("realtime bridge stopped", zap.Error(err))
			}
			return nil
		})
	}
	handlers.Events = events

	// Generation
	chains := llm.NewRegistry(ctx, cfg.LLM, log)
	exec := llm.NewExecutor(cfg.LLM.CallTimeout, log)
	pipeline := planner.NewPipeline(exec, chains, log)
	tracker := progress.NewTracker(db, events, log)
	jobs := planner.NewJobs(
		pipeline,
		planner.NewMaterializer(db, log),
		tracker,
		ratelimit.New(db),
		cfg.LLM.PipelineTimeout,
		log,
	)

	// Diagrams
	browser := diagram.NewBrowserRenderer(cfg.Renderer, log)
	defer func() {
		if err := browser.Close(); err != nil {
			log.Warn("close renderer", zap.Error(err))
		}
	}()
	breaker := resilience.NewBreaker("sequence-renderer", cfg.Renderer.BreakerThreshold, cfg.Renderer.BreakerCooldown, log)
	graphviz, err := diagram.NewGraphvizRenderer(ctx)
	if err != nil {
		return err
	}
	defer graphviz.Close()
	svgCache, err := diagram.NewSVGCache(svgCacheBytes, cfg.Renderer.CacheTTL)
	if err != nil {
		return fmt.Errorf("init svg cache: %w", err)
	}
	defer svgCache.Close()
	workflow := diagram.NewWorkflow(exec, chains, diagram.Guard(browser, breaker), graphviz, svgCache, diagram.Options{
		MaxIterations: cfg.LLM.DiagramIterations,
		Temperature:   cfg.LLM.DiagramTemperature,
		Timeout:       cfg.Renderer.WorkflowTimeout,
	}, log)

	mailer := email.NewMailer(email.NewSender(cfg.SMTP, log), cfg.FrontendURL, cfg.SupportEmail)

	// Setup the routes (public and protected routes)
	router := routes.SetupRoutes(routes.Deps{
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Auth: handlers.NewAuthHandler(
			mailer,
			auth.NewProviders(cfg.OAuth),
			cache.NewStateStore(oauthStateTTL),
			cfg.FrontendURL,
			cfg.Server.SecureCookies,
		),
		Plan:     handlers.NewPlanHandler(jobs, tracker),
		Diagrams: handlers.NewDiagramHandler(workflow),
		Context:  handlers.NewContextHandler(pipeline),
		Contact:  handlers.NewContactHandler(mailer),
		WS:       handlers.NewWebSocketHandler(hub, cfg.Server.AllowedOrigins),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	// background plan generations finish before the database goes away
	jobs.Wait()
	return err
}
