package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avtotest/config"
	"avtotest/handlers"
	"avtotest/middleware"
	"avtotest/models"
	"avtotest/routes"
	"avtotest/services"

	"github.com/gin-gonic/gin"
)

func main() {
	seedFile := flag.String("seed", "", "import tickets and questions from a JSON file, then exit")
	flag.Parse()

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := config.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	ticketService := services.NewTicketService(db)
	if *seedFile != "" {
		if err := importTickets(ticketService, *seedFile); err != nil {
			log.Fatal("Failed to import tickets:", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Redis
	redisClient := config.InitRedis(cfg)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis is not reachable: %v", err)
	}

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminFullName); err != nil {
			log.Fatal("Failed to bootstrap admin:", err)
		}
	}

	resultService := services.NewResultService(db)
	profileService := services.NewProfileService(db)
	provisioner := services.NewProvisioner(authService)

	syncer := services.NewResultSyncer(resultService, services.NewRedisResultOutbox(redisClient), 256)
	testService := services.NewTestService(ticketService, services.NewRedisSessionStore(redisClient, cfg.SessionTTL), syncer)

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	syncer.OnSynced(func(result *models.Result) {
		if err := testService.MarkResultSynced(context.Background(), result); err != nil {
			log.Printf("Failed to mark result %s synced: %v", result.ID, err)
		}
	})
	syncer.OnSynced(hub.NotifyResultStored)

	// The syncer outlives the HTTP server so that attempts finished during
	// shutdown still reach the database or the outbox.
	syncCtx, stopSync := context.WithCancel(context.Background())
	defer stopSync()
	go syncer.Run(syncCtx)

	reconciler, err := services.StartResultReconciler(syncCtx, syncer, cfg.ReconcileSchedule)
	if err != nil {
		log.Fatal("Failed to start result reconciler:", err)
	}

	// Initialize handlers
	h := routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		Provision: handlers.NewProvisionHandler(provisioner),
		Test:      handlers.NewTestHandler(testService),
		Ticket:    handlers.NewTicketHandler(ticketService, resultService),
		Profile:   handlers.NewProfileHandler(profileService),
	}

	// Setup Gin router
	router := gin.Default()
	router.Use(middleware.CORS())
	routes.SetupRoutes(router, h, hub, authService)

	server := &http.Server{
		Addr:    cfg.BindAddress + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}

	<-reconciler.Stop().Done()

	stopSync()
	select {
	case <-syncer.Done():
	case <-shutdownCtx.Done():
		log.Println("Timed out waiting for pending results to be stored")
	}
	log.Println("Shutdown complete")
}

func importTickets(ticketService *services.TicketService, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var tickets []services.ImportTicketRequest
	if err := json.Unmarshal(data, &tickets); err != nil {
		return err
	}

	for i := range tickets {
		ticket, err := ticketService.ImportTicket(context.Background(), &tickets[i])
		if err != nil {
			return err
		}
		log.Printf("Imported ticket #%d %q with %d questions", ticket.TicketNumber, ticket.Title, len(tickets[i].Questions))
	}
	return nil
}
