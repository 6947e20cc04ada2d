package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wenwu/saas-platform/ipam-service/internal/client"
	"github.com/wenwu/saas-platform/ipam-service/internal/config"
	"github.com/wenwu/saas-platform/ipam-service/internal/db"
	"github.com/wenwu/saas-platform/ipam-service/internal/http"
	"github.com/wenwu/saas-platform/ipam-service/internal/repository"
	"github.com/wenwu/saas-platform/ipam-service/internal/service"
)

func main() {
	log.Println("Starting IPAM Service...")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Run database migrations
	if err := db.RunMigrations(cfg.Database.DSN()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize database
	database, err := db.New(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Initialize repositories
	countryRepo := repository.NewCountryRepository(database)
	regionRepo := repository.NewRegionRepository(database)
	hostRepo := repository.NewHostRepository(database)
	quotaRepo := repository.NewQuotaRepository(database)
	auditRepo := repository.NewAuditRepository(database)
	reservationRepo := repository.NewReservationRepository(database)

	// Seed and load the address space
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	index, err := service.LoadAddressSpaceIndex(ctx, countryRepo)
	cancel()
	if err != nil {
		log.Fatalf("Failed to load address space: %v", err)
	}

	// Event sink: HTTP notifier when configured, otherwise log only
	var events service.EventSink = service.LogEventSink{}
	if cfg.Services.NotifierURL != "" {
		events = client.NewNotifierClient(cfg.Services.NotifierURL, cfg.InternalSecret)
	}

	// Initialize services
	quotaLedger := service.NewQuotaLedger(quotaRepo, cfg.Quota.RegionLimit, cfg.Quota.HostLimit, cfg.Quota.WarningThreshold)
	auditLedger := service.NewAuditLedger(auditRepo, time.Now)
	allocator := service.NewSlotAllocator(cfg.Alloc.MaxConflictRetries)
	authz := service.OwnerAuthorizer{}

	allocationService := service.NewAllocationService(
		index,
		regionRepo,
		hostRepo,
		quotaLedger,
		auditLedger,
		allocator,
		database,
		authz,
		events,
		time.Now,
	)

	retirementService := service.NewRetirementService(
		regionRepo,
		hostRepo,
		quotaLedger,
		auditLedger,
		database,
		authz,
		events,
	)

	reservationService := service.NewReservationService(
		index,
		regionRepo,
		hostRepo,
		reservationRepo,
		allocationService,
		authz,
		events,
		time.Duration(cfg.Reservation.DefaultTTLMinutes)*time.Minute,
		time.Duration(cfg.Reservation.MaxTTLMinutes)*time.Minute,
		time.Now,
	)

	// Initialize HTTP server
	handler := http.NewHandler(allocationService, retirementService, reservationService, auditLedger, index)
	server := http.NewServer(cfg, handler)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("Server starting on %s", addr)
		if err := server.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	log.Println("Server exited")
}
