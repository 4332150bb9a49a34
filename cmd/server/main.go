package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-inbox/internal/api"
	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/processor"
	"whatsapp-inbox/internal/webhook"
	"whatsapp-inbox/internal/whatsapp"
	"whatsapp-inbox/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := cfg.NewLogger(os.Stdout)
	slog.SetDefault(log)

	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	store := database.NewStore(db, log.With("component", "store"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	whatsappClient := whatsapp.NewClient(cfg, log.With("component", "bridge"))
	inbox := processor.FromConfig(cfg, store, whatsappClient, log.With("component", "processor"))

	hub := ws.NewHub(log.With("component", "ws"))
	go hub.Run(ctx)

	webhookHandler := webhook.NewHandler(cfg.WebhookToken, inbox, hub, log.With("component", "webhook"))
	conversationHandler := api.NewConversationHandler(inbox, store, hub, log)
	sendHandler := api.NewSendHandler(whatsappClient, inbox, hub, log)
	contactHandler := api.NewContactHandler(store, log)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Bridge Webhook
	r.POST("/webhook", webhookHandler.Authorize, webhookHandler.HandleMessages)

	// Live inbox updates
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/conversations", conversationHandler.GetConversations)
		apiGroup.GET("/conversations/:id/messages", conversationHandler.GetMessages)
		apiGroup.GET("/conversations/display-name", conversationHandler.GetDisplayName)
		apiGroup.POST("/conversations/display-name", conversationHandler.PromoteDisplayName)
		apiGroup.POST("/conversations/refresh", conversationHandler.RefreshContactInfo)
		apiGroup.POST("/groups/sync", conversationHandler.SyncGroups)
		apiGroup.POST("/send", sendHandler.SendMessage)

		apiGroup.GET("/contacts", contactHandler.GetContacts)
		apiGroup.GET("/contacts/export", contactHandler.ExportContacts)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
