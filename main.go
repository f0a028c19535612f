package main

import (
	"net/http"
	"os"

	"marginalia/config/database"
	"marginalia/internal/annotation/repository"
	"marginalia/internal/annotation/service"
	"marginalia/internal/annotation/store"
	"marginalia/internal/review"
	"marginalia/pkg/logger"
	"marginalia/router"
	"marginalia/socket"

	"github.com/joho/godotenv"
)

func main() {
	logger.Init()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	db := database.Connect()
	defer db.Close()

	repo := repository.NewAnnotationRepository(db)
	if err := repo.EnsureSchema(); err != nil {
		logger.Sugar.Fatalf("Failed to prepare database schema: %v", err)
	}

	// The store is canonical; Postgres is the single local backing copy.
	st := store.New()
	records, err := repo.LoadAll()
	if err != nil {
		logger.Sugar.Fatalf("Failed to load annotations: %v", err)
	}
	st.Seed(records)
	logger.Sugar.Infof("Loaded %d annotation(s)", len(records))

	hub := socket.NewHub(st)
	go hub.Run()

	svc := service.NewAnnotationService(st, repo, hub)
	go svc.SaveWorker()

	sched := review.NewScheduler(svc)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Sugar.Infof("Listening on :%s", port)
	if err := http.ListenAndServe(":"+port, router.Setup(svc, sched, hub)); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
