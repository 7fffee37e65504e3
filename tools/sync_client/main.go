package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	ledger "verdant-cloud/internal/ledger/domain"
	"verdant-cloud/internal/realtime"
	snapdomain "verdant-cloud/internal/snapshot/domain"
)

func main() {
	configPath := flag.String("config", "sync_client.yaml", "path to the client config file")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := realtime.LoadClientConfig(*configPath)
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	api, err := realtime.NewAPIClient(cfg.BaseURL, cfg.Token)
	if err != nil {
		logger.Fatalf("api client error: %v", err)
	}

	applier := &consoleApplier{logger: logger}
	syncer, err := realtime.NewSyncer(api, cfg.ZoneID, applier, logger, realtime.WithPageLimit(cfg.PageLimit))
	if err != nil {
		logger.Fatalf("syncer error: %v", err)
	}

	transport, err := realtime.NewSSETransport(cfg.BaseURL, cfg.Token, cfg.ZoneID, logger)
	if err != nil {
		logger.Fatalf("transport error: %v", err)
	}

	clock := realtime.NewSystemClock()
	timers := realtime.NewTimerSet()

	scheduler, err := realtime.NewScheduler(clock, timers, transport, logger)
	if err != nil {
		logger.Fatalf("scheduler error: %v", err)
	}
	reconciler, err := realtime.NewReconciler(clock, zoneResync{api: api, zoneID: cfg.ZoneID}, applier, logger)
	if err != nil {
		logger.Fatalf("reconciler error: %v", err)
	}
	manager, err := realtime.NewConnManager(clock, timers, scheduler, reconciler, transport, logger)
	if err != nil {
		logger.Fatalf("manager error: %v", err)
	}
	transport.Bind(manager, syncer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := syncer.Bootstrap(ctx); err != nil {
		logger.Fatalf("bootstrap error: %v", err)
	}
	logger.Printf("bootstrap complete, cursor at event %d", syncer.LastEventID())

	transport.Connect()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	transport.Close()
	manager.Close()
	logger.Printf("shutdown, cursor at event %d", syncer.LastEventID())
}

// zoneResync adapts the API client to the reconciler's single-zone fetcher.
type zoneResync struct {
	api    *realtime.APIClient
	zoneID string
}

func (z zoneResync) Resync(ctx context.Context) (realtime.ResyncData, error) {
	return z.api.Resync(ctx, z.zoneID)
}

// consoleApplier prints synchronized state to stdout.
type consoleApplier struct {
	logger *log.Logger
}

func (a *consoleApplier) ApplySnapshot(snap snapdomain.Snapshot) {
	a.logger.Printf("snapshot %s: %d devices, %d alerts, %d telemetry channels, %d commands, last_event_id=%d",
		snap.SnapshotID, len(snap.Devices), len(snap.ActiveAlerts), len(snap.LatestTelemetry), len(snap.RecentCommands), snap.LastEventID)
}

func (a *consoleApplier) ApplyEvent(event ledger.Event) {
	message := event.Message
	if message == "" {
		message = event.Type
	}
	fmt.Printf("[%d] %s %s\n", event.EventID, event.Type, message)
}

func (a *consoleApplier) ApplyResync(data realtime.ResyncData) {
	a.logger.Printf("reconciled: %d telemetry channels, %d commands, %d alerts",
		len(data.Telemetry), len(data.Commands), len(data.Alerts))
}
