package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/EQSP-Task-Manager/backend-draft/internal/config"
	"github.com/EQSP-Task-Manager/backend-draft/internal/handlers"
	"github.com/EQSP-Task-Manager/backend-draft/internal/middleware"
	"github.com/EQSP-Task-Manager/backend-draft/internal/service"
	"github.com/EQSP-Task-Manager/backend-draft/internal/storage"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	backend, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.DB.Close()

	svc := service.New(backend.DB, backend.Tasks)
	h := handlers.New(backend, svc, cfg.JWTKey)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	router.GET("/health", h.Health)

	auth := router.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)

	api := router.Group("/api", middleware.Auth(cfg.JWTKey), middleware.DeviceID())
	api.GET("/tasks", h.GetTasks)
	api.POST("/tasks", h.AddTask)
	api.DELETE("/tasks", h.DeleteTask)
	api.PATCH("/tasks", h.UpdateTask)
	api.PUT("/tasks", h.UpdateTasks)

	log.Fatal(router.Run(":" + cfg.Port))
}
