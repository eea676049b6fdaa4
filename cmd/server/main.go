package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fulljjb/server/internal/config"
	"github.com/fulljjb/server/internal/es"
	"github.com/fulljjb/server/internal/events"
	"github.com/fulljjb/server/internal/handlers"
	"github.com/fulljjb/server/internal/logging"
	"github.com/fulljjb/server/internal/mail"
	"github.com/fulljjb/server/internal/service"
	"github.com/fulljjb/server/internal/tokens"
	httpserver "github.com/fulljjb/server/internal/transport/http"
	"github.com/fulljjb/server/internal/upload"
	"github.com/fulljjb/server/internal/ws"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	tokenSvc := tokens.NewService(
		[]byte(configuration.JWT_SECRET),
		[]byte(configuration.REFRESH_SECRET),
	)

	mailer, err := mail.NewSMTPMailer(configuration)
	if err != nil {
		log.Fatalf("mailer init error: %v", err)
	}

	var producer *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	var techniqueES *elasticsearch.Client
	if configuration.ES_URL != "" {
		techniqueES, err = es.NewClient(configuration)
		if err != nil {
			log.Printf("elasticsearch unavailable: %v", err)
			techniqueES = nil
		}
	}

	uploads, err := upload.NewStore(configuration.UPLOAD_DIR)
	if err != nil {
		log.Fatalf("upload store init error: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	chatSvc := &service.ChatService{DB: db, Hub: hub, Producer: producer}
	gate := &service.TokenService{DB: db, Tokens: tokenSvc, Secure: configuration.Production()}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{configuration.FRONTEND_URL},
		AllowCredentials: true,
	}))

	deps := httpserver.Deps{
		AuthHandler: &handlers.AuthHandler{
			DB:          db,
			Tokens:      tokenSvc,
			Mailer:      mailer,
			Producer:    producer,
			FrontendURL: configuration.FRONTEND_URL,
			Secure:      configuration.Production(),
		},
		TechniqueHandler: &handlers.TechniqueHandler{
			DB:       db,
			Uploads:  uploads,
			ES:       techniqueES,
			Validate: validator.New(),
		},
		ChatHandler:  &handlers.ChatHandler{Chat: chatSvc},
		Gateway:      &ws.Gateway{Hub: hub, DB: db, Tokens: tokenSvc, Chat: chatSvc},
		TokenService: gate,
		UploadDir:    configuration.UPLOAD_DIR,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
