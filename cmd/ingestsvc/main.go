package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/nalam-kiosk/rfid-services/configs"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/broker"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/db"
	handlers "github.com/nalam-kiosk/rfid-services/internal/ingestsvc/handlers"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/service"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/store"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/ws"
	natscli "github.com/nalam-kiosk/rfid-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "ingest"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	config.CreateUniqueInstance(SERVICE_NAME)

	// pg connection
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dbpool.Close()
	log.Printf("pg connection established successfully")

	scanStore := store.NewScanStore(dbpool)

	// schema must exist before the listener opens
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := scanStore.EnsureSchema(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to ensure rfid_scans schema: %v", err)
	}
	cancel()
	log.Printf("table 'rfid_scans' is ready")

	scanService := service.NewScanService(scanStore)

	// NATS is a deployment option; configured but unreachable is fatal
	var b *broker.Broker
	if natscli.Enabled() {
		n, err := natscli.Connect()
		if err != nil {
			log.Fatalf("Error: unable to connect to NATS server %v", err)
		}
		defer n.Conn.Close()
		log.Printf("NATS connection established successfully %s", n.Url)

		b = broker.NewBroker(n.Conn)
	} else {
		log.Printf("NATS_URL not set, scan notifications disabled")
	}

	// live scan feed for dashboard clients
	feed := ws.NewWs()

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(scanService, b, feed)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("INGEST_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
