// Command identity-bridge runs the token-exchange service that mints
// secondary-system credentials from primary-auth tokens. It is designed
// for serverless-style deployment: configuration comes entirely from the
// environment and shutdown is graceful on SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/huntmate/grindsync/internal/bridge"
)

func main() {
	// Local development convenience; production supplies real env vars.
	_ = godotenv.Load()

	secret := os.Getenv("BRIDGE_JWT_SECRET")
	if secret == "" {
		// The handler answers 400s without a secret rather than
		// refusing to boot, but make the misconfiguration loud.
		log.Println("WARNING: BRIDGE_JWT_SECRET is not set; all exchanges will fail")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8787"
	}

	handler := bridge.NewHandler([]byte(secret), nil)
	router := bridge.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("identity-bridge listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
