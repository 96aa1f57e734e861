package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vintagemart/billing"
	"vintagemart/config"
	"vintagemart/database"
	"vintagemart/handlers"
	"vintagemart/metrics"
	"vintagemart/tracing"

	tracer "github.com/dhawal-pandya/aeonis/packages/tracer-sdk/go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

func main() {
	sweepOnce := flag.Bool("sweep-once", false, "run the overdue sweep once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	setupLogging(cfg)

	if cfg.AeonisAPIKey != "" {
		aeonisTracer := tracer.NewTracer(
			"vintagemart-billing",
			cfg.AeonisEndpoint,
			cfg.AeonisAPIKey,
			tracer.NewPIISanitizer(),
		)
		defer aeonisTracer.Shutdown()

		tracing.SetStarter(func(ctx context.Context, name string) (context.Context, tracing.Span) {
			ctx, span := aeonisTracer.StartSpan(ctx, name)
			return ctx, tracing.SpanFuncs{
				EndFunc:   span.End,
				ErrorFunc: func(message string) { span.SetError(message, "") },
				AttrsFunc: span.SetAttributes,
			}
		})
		log.WithField("endpoint", cfg.AeonisEndpoint).Info("Tracing enabled")
	} else {
		log.Info("AEONIS_API_KEY not set, tracing disabled")
	}

	if err := database.ConnectDatabase(cfg.DatabaseURL); err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	handlers.Metrics = m
	handlers.Logger = log.StandardLogger()
	handlers.SubscriptionAmount = cfg.SubscriptionAmount()
	handlers.RenewalDays = cfg.DefaultRenewalDays

	svc := billing.New(database.DB,
		billing.WithMetrics(m),
		billing.WithLogger(log.StandardLogger()),
		billing.WithSubscriptionDefaults(cfg.SubscriptionAmount(), cfg.DefaultRenewalDays),
	)

	if *sweepOnce {
		result, err := svc.SweepOverdue(context.Background())
		if err != nil {
			log.WithError(err).Fatal("Overdue sweep failed")
		}
		log.WithField("marked", result.Marked).Info("Overdue sweep finished")
		return
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.OverdueSweepSchedule, func() {
		if _, err := svc.SweepOverdue(context.Background()); err != nil {
			log.WithError(err).Error("Scheduled overdue sweep failed")
		}
	})
	if err != nil {
		log.WithError(err).WithField("schedule", cfg.OverdueSweepSchedule).Fatal("Failed to schedule overdue sweep")
	}
	c.Start()
	log.WithField("schedule", cfg.OverdueSweepSchedule).Info("Overdue sweep scheduled")

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), m.Middleware())

	// Middleware to create the root span for each request.
	r.Use(func(c *gin.Context) {
		ctx, span := tracing.StartSpan(c.Request.Context(), c.Request.URL.Path)
		defer span.End()

		span.SetAttributes(map[string]interface{}{
			"http.method":     c.Request.Method,
			"http.url":        c.Request.URL.String(),
			"http.client_ip":  c.ClientIP(),
			"http.user_agent": c.Request.UserAgent(),
		})

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(map[string]interface{}{
			"http.status_code": c.Writer.Status(),
		})
	})

	handlers.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}
	go func() {
		log.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutting down gracefully...")

	<-c.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
}

func setupLogging(cfg config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}
