// Run the sync queue inspector server.
//
// All of the project defaults are used. There is one authenticated user for
// basic auth, the user is "test" and the password is "toutie". You will want
// to copy this binary and add your own authentication scheme.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Shyp/go-simple-metrics"
	"github.com/XBurnsX/toutiebudget-sync/auth"
	"github.com/XBurnsX/toutiebudget-sync/config"
	"github.com/XBurnsX/toutiebudget-sync/connectivity"
	"github.com/XBurnsX/toutiebudget-sync/models/db"
	"github.com/XBurnsX/toutiebudget-sync/scheduler"
	"github.com/XBurnsX/toutiebudget-sync/server"
	"github.com/XBurnsX/toutiebudget-sync/setup"
	"github.com/XBurnsX/toutiebudget-sync/urls"
	"github.com/XBurnsX/toutiebudget-sync/worker"
	"github.com/gorilla/handlers"
	_ "github.com/joho/godotenv/autoload"
)

func configure() (http.Handler, *scheduler.Scheduler, error) {
	store, err := setup.Store(db.DefaultConnection)
	if err != nil {
		return nil, nil, err
	}

	metrics.Namespace = "toutiebudget-sync.server"
	metrics.Start("web")

	go setup.MeasureQueueDepth(store, 5*time.Second)

	parsedUrl := config.GetURLOrBail("SYNC_BACKEND_URL")
	resolver := urls.NewCandidateResolver(parsedUrl.String())
	checker := connectivity.NewHTTPChecker(parsedUrl.String() + "/api/health")
	tokens := &auth.FileProvider{Path: os.Getenv("SYNC_AUTH_CACHE")}

	w := worker.New(store, checker, tokens, resolver)
	sched := scheduler.New(w)

	// If you run this in production, change this user.
	server.AddUser("test", "toutie")
	return server.Get(server.DefaultAuthorizer, store, sched), sched, nil
}

func main() {
	s, sched, err := configure()
	if err != nil {
		log.Fatal(err)
	}
	defer sched.Shutdown()

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}
	log.Printf("Listening on port %s\n", port)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%s", port), handlers.LoggingHandler(os.Stdout, s)))
}
