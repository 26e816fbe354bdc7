package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"group-chat/internal/bus"
	"group-chat/internal/chat"
	"group-chat/internal/config"
	"group-chat/internal/db"
	"group-chat/internal/group"
	"group-chat/internal/metrics"
	myMiddleware "group-chat/internal/middleware"
	"group-chat/internal/user"
	"group-chat/pkg/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.MustLoad()
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Platform layer: Postgres + Redis.
	database, err := db.NewDatabase(cfg.DB.DSN)
	if err != nil {
		slog.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer database.Conn.Close()
	slog.Info("connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("database schema initialized")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("connected to Redis", "addr", cfg.Redis.Addr)

	eventBus := bus.New(redisClient)

	// User feature: identity, profiles, hidden words.
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, cfg.JWTSecret)
	userHandler := user.NewHandler(userService)

	// Group feature: lifecycle + membership index.
	groupRepo := group.NewRepository(database.Conn)
	groupService := group.NewService(groupRepo, userService, eventBus, cfg.StoreTimeout)
	groupHandler := group.NewHandler(groupService)

	// Chat feature: message log + live fan-out.
	chatRepo := chat.NewRepository(database.Conn)
	chatService := chat.NewService(chatRepo, groupService, eventBus, cfg.StoreTimeout)
	hub := chat.NewHub(chatService)
	chatHandler := chat.NewHandler(hub, chatService, userService)

	go hub.Run(ctx)
	go func() {
		// Bridge: Redis events from any instance into the local hub.
		for ev := range eventBus.Subscribe(ctx) {
			hub.Events <- ev
		}
	}()

	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// Public routes.
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Conn.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	// Protected routes.
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/users/search", userHandler.SearchUsers)
		r.Put("/users/me/image", userHandler.UpdateImage)
		r.Get("/users/me/hidden-words", userHandler.GetHiddenWords)
		r.Put("/users/me/hidden-words", userHandler.PutHiddenWords)
		r.Get("/users/{userID}/groups", groupHandler.ListUserGroups)
		r.Post("/users/{userID}/groups/reconcile", groupHandler.ReconcileUserGroups)

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", groupHandler.Create)
			r.Route("/{groupID}", func(r chi.Router) {
				r.Get("/", groupHandler.Get)
				r.Patch("/", groupHandler.Update)
				r.Delete("/", groupHandler.Delete)
				r.Post("/members", groupHandler.AddMembers)
				r.Delete("/members/{userID}", groupHandler.RemoveMember)
				r.Post("/leave", groupHandler.Leave)
				r.Post("/messages", chatHandler.SendMessage)
				r.Get("/messages", chatHandler.GetHistory)
				r.Delete("/messages/{messageID}", chatHandler.DeleteMessage)
				r.Get("/stream", chatHandler.ServeStream)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
