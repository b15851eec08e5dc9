package main

import (
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ably-labs/webcli/internal/api/handlers"
	"github.com/ably-labs/webcli/internal/api/middleware"
	"github.com/ably-labs/webcli/internal/config"
	"github.com/ably-labs/webcli/internal/credential"
	"github.com/ably-labs/webcli/internal/host"
	"github.com/ably-labs/webcli/pkg/logger"
)

func main() {
	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		logger.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}

	if level, err := logger.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if !logger.Enabled(logger.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}

	signer := credential.NewSigner(cfg.SigningSecret)
	sessionHost := host.NewHost(host.Options{
		SigningSecret: cfg.SigningSecret,
		Shell:         cfg.Shell,
		ResumeWindow:  cfg.ResumeWindow,
		RateLimit:     cfg.RateLimit,
		RateWindow:    cfg.RateWindow,
	})
	defer sessionHost.Close()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"*"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	signHandler := handlers.NewSignHandler(signer)
	router.HandleMethodNotAllowed = true
	router.NoMethod(signHandler.MethodNotAllowed)
	router.POST("/sign", signHandler.Sign)
	router.GET("/term", gin.WrapF(sessionHost.HandleConnection))

	logger.Infof("webcli server listening on %s", cfg.Addr)
	if err := router.Run(cfg.Addr); err != nil {
		logger.Errorf("Server exited: %v", err)
		os.Exit(1)
	}
}
