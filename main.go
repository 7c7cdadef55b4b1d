package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MarcGrol/shopsaga/lib/mylifecycle"
)

const (
	serviceCart    = "cart"
	serviceOrder   = "order"
	servicePayment = "payment"

	providerSimulated = "simulated"
	providerStripe    = "stripe"
)

func main() {
	c := context.Background()

	cfg, err := loadConfig(configFilename)
	if err != nil {
		log.Fatalf("Error loading config: %s", err)
	}

	infra, cleanupInfra, err := newInfrastructure(c, cfg)
	if err != nil {
		log.Fatalf("Error creating infrastructure: %s", err)
	}
	defer cleanupInfra()

	app, err := newApplication(c, cfg, infra)
	if err != nil {
		log.Fatalf("Error creating services %s: %s", cfg.Services, err)
	}
	defer app.cleanup()

	c, stop := signal.NotifyContext(c, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := mylifecycle.Start(c, app.processors...)
	if err != nil {
		log.Fatalf("Error starting consumers: %s", err)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: app.router,
	}
	go func() {
		log.Printf("Starting webserver on port %s (try http://localhost:%s/healthz)", cfg.HTTP.Port, cfg.HTTP.Port)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Error running webserver on port %s: %s", cfg.HTTP.Port, err)
			stop()
		}
	}()

	<-c.Done()

	shutdown(cfg, srv, handle)
}

// shutdown stops accepting checkouts first and then lets the consumers drain.
func shutdown(cfg Config, srv *http.Server, handle *mylifecycle.Handle) {
	c, cancel := context.WithTimeout(context.Background(), cfg.Subscriber.StopTimeout)
	defer cancel()

	log.Printf("Shutting down")

	err := srv.Shutdown(c)
	if err != nil {
		log.Printf("Error stopping webserver: %s", err)
	}

	err = handle.Stop(c)
	if err != nil {
		log.Printf("Error stopping consumers: %s", err)
	}
}
