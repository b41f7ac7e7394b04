package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/roomcast/roomcast/internal/server"
	"github.com/roomcast/roomcast/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env file not found, using environment and defaults: %v", err)
	}

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	messageStore, err := openStore(config)
	if err != nil {
		log.Fatalf("Failed to open message store: %v", err)
	}

	hub := server.StartHub(messageStore)

	router := server.SetupRoutes()
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})

	httpServer := server.CreateServer(config.Port, corsHandler.Handler(router))

	go func() {
		if err := server.StartServer(httpServer); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutdown signal received")

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := messageStore.Close(closeCtx); err != nil {
		log.Printf("Store close error: %v", err)
	}
}

// openStore selects the persistence backend from configuration. Both
// backends satisfy the same contract; nothing past this point knows which
// one is in use.
func openStore(config *server.Config) (store.MessageStore, error) {
	switch config.Store.Backend {
	case server.StoreBackendMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return store.NewMongoStore(ctx, config.Store.MongoURI, config.Store.MongoDatabase, config.Store.HistoryLimit)
	default:
		return store.NewFileStore(config.Store.FileDir, config.Store.HistoryLimit)
	}
}
