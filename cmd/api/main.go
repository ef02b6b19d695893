package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/complaint"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/httpapi"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/notify"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/obs"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	addr := os.Getenv("MEDACTION_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	catalog := perm.NewCatalog()

	// Postgres when a DSN is configured; in-memory demo mode otherwise.
	var (
		store      complaint.Store
		pgStore    *pg.Store
		apiOptions []httpapi.Option
		probe      httpapi.ReadyProbe
		overrides  perm.OverrideSource
	)
	if dsn := os.Getenv("MEDACTION_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		overrides = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
		apiOptions = append(apiOptions,
			httpapi.WithIdentityStore(pgStore),
			httpapi.WithOverrideAdmin(pgStore),
		)
	} else {
		log.Print("MEDACTION_PG_DSN not set, using in-memory store")
		store = complaint.NewInMemory()
	}

	resolver := perm.NewResolver(catalog, overrides)

	dispatcher := notify.NewDispatcher(notify.LogSink{}, 256)
	defer dispatcher.Close()

	serviceOptions := []complaint.Option{complaint.WithNotifier(dispatcher)}
	if pgStore != nil {
		serviceOptions = append(serviceOptions, complaint.WithMediaStore(pgStore))
	}
	service, err := complaint.NewService(store, resolver, serviceOptions...)
	if err != nil {
		log.Fatalf("build service: %v", err)
	}

	api := httpapi.New(service, resolver, probe, version, apiOptions...)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting medaction-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
