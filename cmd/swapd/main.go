package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anchorswap/swapd/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:     "swapd",
		Usage:    "cross-ledger escrow/payment-channel swap daemon",
		Flags:    config.AllFlags(),
		Action:   runDaemon,
		Commands: []*cli.Command{registerCmd, depositCmd},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runDaemon(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return err
	}

	log.SetLevel(log.Level(cfg.LogLevel))
	log.Infof("swapd config: %s", cfg)

	svc, err := cfg.AppService()
	if err != nil {
		return fmt.Errorf("failed to create service: %s", err)
	}

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start service: %s", err)
	}

	log.RegisterExitHandler(func() {
		svc.Stop()
		cfg.Close()
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(
		sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP, os.Interrupt,
	)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}
