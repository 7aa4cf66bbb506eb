// Package main is the entry point of the tailwind pedal-assist controller.
// It loads the configuration, constructs the system and runs either the
// assist controller or the pass-through bridge; the two are mutually
// exclusive boot modes.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"tailwind/internal/core"
	"tailwind/internal/model"
	"tailwind/internal/motor"
	"tailwind/internal/util"
)

func main() {
	cfgPath := flag.String("c", "configs/config.yml", "path to configuration file")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	util.SetupLogger(*verbose)

	cfg, err := model.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *cfgPath).Msg("failed to load config")
	}
	log.Info().Str("config", *cfgPath).Msg("tailwind controller starting")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	if cfg.Bridge.Enabled {
		runBridge(cfg, stop)
		return
	}
	runController(cfg, stop)
}

// runController boots the assist controller and blocks until a signal.
func runController(cfg *model.Config, stop chan os.Signal) {
	sys, err := core.NewSystem(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build system")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sys.StartAll(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start system")
	}

	<-stop
	log.Info().Msg("shutting down")
	sys.StopAll()
	log.Info().Msg("stopped cleanly")
}

// runBridge hands the motor port to a host tool and blocks until a signal.
func runBridge(cfg *model.Config, stop chan os.Signal) {
	b, err := motor.OpenBridge(cfg.Bridge.HostDevice, cfg.Bridge.HostBaud,
		cfg.Motor.Device, cfg.Motor.Baud)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open bridge ports")
	}
	b.Start()
	<-stop
	b.Stop()
}
