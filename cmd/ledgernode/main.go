// Command ledgernode runs a single peer-to-peer ledger node: it mines a
// proof-of-work blockchain, accepts signed transactions over a local
// HTTP API, and gossips chain/transaction/pool state to peers discovered
// on the local network. Generalizes the teacher's main.go (flag-parsed
// port, inline node wiring) to urfave/cli/v2, grounded on klaytn's
// cmd/utils/flags.go and cmd/utils/nodecmd/*.go.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Dyst0rti0n/ledgernode/internal/blockchain"
	"github.com/Dyst0rti0n/ledgernode/internal/config"
	"github.com/Dyst0rti0n/ledgernode/internal/coordinator"
	"github.com/Dyst0rti0n/ledgernode/internal/httpapi"
	"github.com/Dyst0rti0n/ledgernode/internal/netp2p"
	"github.com/Dyst0rti0n/ledgernode/internal/pool"
	"github.com/Dyst0rti0n/ledgernode/internal/wallet"
)

func main() {
	app := &cli.App{
		Name:      "ledgernode",
		Usage:     "run a peer-to-peer proof-of-work ledger node",
		ArgsUsage: "[port]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "rendezvous",
				Value: config.DefaultRendezvous,
				Usage: "mDNS rendezvous string peers must share to find each other",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "logrus level: trace, debug, info, warn, error",
			},
			&cli.IntFlag{
				Name:  "p2p-port",
				Value: 0,
				Usage: "libp2p listen port (0 lets the OS choose)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := newLogger(c.String("log-level"))

	port := config.DefaultHTTPPort
	if c.Args().Len() > 0 {
		parsed, err := parsePort(c.Args().First())
		if err != nil {
			return fmt.Errorf("ledgernode: %w", err)
		}
		port = parsed
	}

	w, err := wallet.New()
	if err != nil {
		return fmt.Errorf("ledgernode: creating wallet: %w", err)
	}
	log.WithField("public_key", fmt.Sprintf("%x", w.PublicKey())).Info("wallet identity created")

	bc := blockchain.New()
	p := pool.New()

	net, err := netp2p.NewLibP2P(c.Int("p2p-port"), c.String("rendezvous"), log.WithField("component", "netp2p"))
	if err != nil {
		return fmt.Errorf("ledgernode: starting network: %w", err)
	}
	defer net.Close()

	coord := coordinator.New(bc, p, w, net, log.WithField("component", "coordinator"))

	server := httpapi.New(bc, p, w, coord.Commands, log.WithField("component", "httpapi"))
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: server,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go coord.Run(ctx)

	go func() {
		log.WithField("port", port).Info("http api listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server stopped unexpectedly")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.HeartbeatInterval*50)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func parsePort(s string) (int, error) {
	var port int
	if _, err := fmt.Sscanf(s, "%d", &port); err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	return port, nil
}

func newLogger(level string) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logrus.NewEntry(logger)
}
