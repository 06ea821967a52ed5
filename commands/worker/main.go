// Drain the sync queue in the background.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shyp/go-simple-metrics"
	"github.com/XBurnsX/toutiebudget-sync/auth"
	"github.com/XBurnsX/toutiebudget-sync/config"
	"github.com/XBurnsX/toutiebudget-sync/connectivity"
	"github.com/XBurnsX/toutiebudget-sync/models/db"
	"github.com/XBurnsX/toutiebudget-sync/scheduler"
	"github.com/XBurnsX/toutiebudget-sync/services"
	"github.com/XBurnsX/toutiebudget-sync/setup"
	"github.com/XBurnsX/toutiebudget-sync/urls"
	"github.com/XBurnsX/toutiebudget-sync/worker"
	_ "github.com/joho/godotenv/autoload"
)

func checkError(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	store, err := setup.Store(db.DefaultConnection)
	checkError(err)

	go setup.MeasureQueueDepth(store, 5*time.Second)
	go setup.MeasureInProgressJobs(store, 1*time.Second)

	// Every minute, check for in-progress jobs whose pass died more than
	// 7 minutes ago, and put them back in the queue.
	go services.WatchStuckJobs(store, 1*time.Minute, 7*time.Minute)

	// We're going to make a lot of requests to the same backend.
	httpConns, err := config.GetInt("HTTP_MAX_IDLE_CONNS")
	if err == nil {
		config.SetMaxIdleConnsPerHost(httpConns)
	} else {
		config.SetMaxIdleConnsPerHost(100)
	}

	metrics.Namespace = "toutiebudget-sync.worker"
	metrics.Start("worker")

	parsedUrl := config.GetURLOrBail("SYNC_BACKEND_URL")
	resolver := urls.NewCandidateResolver(parsedUrl.String())
	checker := connectivity.NewHTTPChecker(parsedUrl.String() + "/api/health")
	tokens := &auth.FileProvider{Path: os.Getenv("SYNC_AUTH_CACHE")}

	w := worker.New(store, checker, tokens, resolver)
	sched := scheduler.New(w)
	sched.Trigger()

	// Drain periodically even with no local mutations, so requeued and
	// stuck-reset jobs get picked up.
	interval := 5 * time.Minute
	if seconds, err := config.GetInt("SYNC_INTERVAL_SECONDS"); err == nil {
		interval = time.Duration(seconds) * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			sched.Trigger()
		}
	}()

	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigterm
	fmt.Printf("Caught signal %v, shutting down...\n", sig)
	ticker.Stop()
	sched.Shutdown()
	fmt.Println("Scheduler shut down. Quitting.")
}
