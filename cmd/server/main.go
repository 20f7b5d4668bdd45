package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/minu-sso/flow"
	"github.com/jrsteele09/minu-sso/internal/config"
	"github.com/jrsteele09/minu-sso/internal/logging"
	"github.com/jrsteele09/minu-sso/internal/storage"
	"github.com/jrsteele09/minu-sso/server"
	"github.com/jrsteele09/minu-sso/services"
	"github.com/jrsteele09/minu-sso/tokens"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	logging.Setup(c.GetLogLevel(), c.IsDev())
	displayAppname(c.GetAppName())

	ctx := context.Background()
	store, err := storage.Open(ctx, c)
	if err != nil {
		return err
	}
	defer storage.Close(store)

	redirectURIs := c.GetRedirectURIs()
	if len(redirectURIs) == 0 {
		redirectURIs = []string{c.GetBaseURL() + server.RouteMinuCallback}
	}
	registry, err := services.NewRegistryFromOrigins(c.GetClientID(), redirectURIs, c.GetScopes(), c.GetServiceOrigins())
	if err != nil {
		return err
	}

	tokenClient := tokens.NewClient(
		tokens.WithHTTPClient(&http.Client{Timeout: c.GetHTTPTimeout()}),
		tokens.WithWorkersURL(c.GetWorkersAPIURL()),
	)
	manager := flow.NewManager(registry, tokenClient, store,
		flow.WithSessionTTL(c.GetSessionTTL()),
		flow.WithPendingTTL(c.GetPendingTTL()),
		flow.WithDefaultScopes(c.GetScopes()...),
	)

	handler, err := server.New(c, registry, manager, store)
	if err != nil {
		return err
	}
	defer handler.Close()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()
	if err := waitForStopSignal(serveErr); err != nil {
		return err
	}
	returnError = shutdown(httpServer)
	return returnError
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

// waitForStopSignal returns on SIGINT/SIGTERM, or with the listener's error if it
// stops first.
func waitForStopSignal(serveErr <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		return nil
	case err := <-serveErr:
		return err
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
