package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/tailorjob/backend/internal/alerting"
	"github.com/tailorjob/backend/internal/logger"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	fwd := alerting.NewForwarder(os.Getenv("DISCORD_WEBHOOK_URL"))
	if !fwd.Configured() {
		log.Warn("DISCORD_WEBHOOK_URL not set")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	alerting.NewHandler(fwd, logger.Component(log, "alert-forwarder")).Register(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}
	srv := &http.Server{Addr: ":" + port, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.WithField("port", port).Info("alert forwarder listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
