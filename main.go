package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sheetchat/pkg/api"
	"sheetchat/pkg/config"
	"sheetchat/pkg/identity"
	"sheetchat/pkg/inject"
	"sheetchat/pkg/sheets"
	"sheetchat/pkg/sidebar"

	log "github.com/sirupsen/logrus"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose logging")
	configFile := flag.String("config", "sheetchat.toml", "Path to the config file")

	flag.Parse()
	if *verbose {
		// Set the log level to debug
		log.SetLevel(log.DebugLevel)
	}
	// Set the log format to include a leading timestamp in ISO8601 format
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	settings, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	router, err := buildRouter(settings)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	go startServer(settings.ListenAddress, router)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	<-signalChan
	log.Info("Signalled, shutting down")
}

func buildRouter(s config.Settings) (http.Handler, error) {
	if s.GoogleClientID == "" {
		log.Warn("GOOGLE_CLIENT_ID is not set, spreadsheet access will fail")
	}
	tokens := identity.NewOAuthProvider(s.GoogleClientID, s.GoogleClientSecret)

	names, err := sheets.NewFileNameCache(s.NameCacheFile)
	if err != nil {
		return nil, err
	}
	adapter := sheets.NewSheetClient(tokens, names, sheets.Config{
		Endpoint:          s.SheetsEndpoint,
		ReadTimeout:       s.ReadTimeout(),
		RequestsPerSecond: s.RequestsPerSecond,
		Burst:             s.RequestBurst,
	})

	rt := api.NewRouter(adapter, tokens, &inject.Sidebar{}, api.NewRecentIDs(s.RecentMessages), api.NewMetrics())
	controller := sidebar.NewController(
		&api.LocalChannel{Router: rt, Timeout: s.ReadTimeout() * 4},
		sidebar.NewNLPClient(s.NLPBaseURL, s.NLPVersion, s.NLPTimeout()),
		sidebar.Options{Locale: s.Locale, AutoHighlight: s.AutoHighlight},
	)
	return api.GetRouter(rt, controller.Routes), nil
}

func startServer(addr string, router http.Handler) {
	server := http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
	}
	log.Infof("listening for HTTP on: %s", server.Addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("ListenAndServeError ", err)
	}
}
