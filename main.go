package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/keenpaul29/secure-chat/modules/api"
	"github.com/keenpaul29/secure-chat/modules/auth"
	"github.com/keenpaul29/secure-chat/modules/broker"
	"github.com/keenpaul29/secure-chat/modules/cache"
	"github.com/keenpaul29/secure-chat/modules/message"
	"github.com/keenpaul29/secure-chat/modules/room"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Secure Chat ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	logger := app.Logger()

	// Create modules
	authModule := auth.NewModule(logger.WithModule("auth"))
	roomModule := room.NewModule(logger.WithModule("room"))
	messageModule := message.NewModule(logger.WithModule("message"))
	cacheModule := cache.NewModule(logger.WithModule("cache"))
	brokerModule := broker.NewModule(logger.WithModule("broker"))
	apiModule := api.NewModule(logger.WithModule("api"))

	// Wire up dependencies that flow outside the service container.
	// The cache handle is passed as a provider: the cache module only
	// connects to Redis in Start, so the message module resolves it
	// there rather than capturing a nil handle now.
	messageModule.SetHistoryCacheProvider(cacheModule.HistoryCache)
	apiModule.SetBrokerModule(brokerModule)

	// Register modules with the framework
	// Order: independent modules first, then dependent modules
	app.Register(cacheModule)
	app.Register(authModule)
	app.Register(roomModule)
	app.Register(messageModule)
	app.Register(brokerModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo() {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("REST API Endpoints (http://localhost:3000):")
	log.Println("")
	log.Println("  Public Endpoints:")
	log.Println("  POST   /api/v1/auth/register              - Register a new account")
	log.Println("  POST   /api/v1/auth/login                 - Login and get a token")
	log.Println("  GET    /health                            - Health check")
	log.Println("")
	log.Println("  Protected Endpoints (require Bearer token):")
	log.Println("  GET    /api/v1/auth/me                    - Current account profile")
	log.Println("  GET    /api/v1/users/search?q=            - Search accounts")
	log.Println("  GET    /api/v1/users/check-username/:name - Username availability")
	log.Println("  GET    /api/v1/users/:id                  - Account by id")
	log.Println("  POST   /api/v1/users/batch                - Resolve account ids")
	log.Println("  POST   /api/v1/rooms                      - Create a room")
	log.Println("  GET    /api/v1/rooms                      - List visible rooms")
	log.Println("  GET    /api/v1/rooms/:id                  - Room details")
	log.Println("  POST   /api/v1/rooms/:id/participants     - Add participants")
	log.Println("  DELETE /api/v1/rooms/:id/participants/:u  - Remove a participant")
	log.Println("  GET    /api/v1/rooms/:id/messages         - Recent history (ETag aware)")
	log.Println("")
	log.Println("WebSocket endpoint: ws://localhost:3000/ws?token=<jwt>")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
