// kraken-keysim runs the full bridge pipeline with the local keyboard standing
// in for the dive housing. Bench tool: tune calibration fractions and delays
// against a real phone without getting the BLE radio wet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pafech/kraken-bridge/internal/adb"
	"github.com/pafech/kraken-bridge/internal/bridge"
	"github.com/pafech/kraken-bridge/internal/config"
	"github.com/pafech/kraken-bridge/internal/gesture"
	"github.com/pafech/kraken-bridge/internal/journal"
	"github.com/pafech/kraken-bridge/internal/keysim"
	"github.com/pafech/kraken-bridge/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/kraken-bridge/config.yaml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// The keyboard stands in for the housing, so housing settings are not
	// required here; everything else still has to be sane.
	cfg.Housing.NamePrefix = "keysim"
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel)
	log := logging.Component("main")

	var rec bridge.Recorder = bridge.NopRecorder{}
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, logging.Component("journal"))
		if err != nil {
			log.Warn().Err(err).Msg("journal unavailable, continuing without it")
		} else {
			defer j.Close()
			rec = j
		}
	}

	device := adb.New(cfg.Adb.Path, cfg.Adb.Serial,
		time.Duration(cfg.Adb.CommandTimeout)*time.Second, logging.Component("adb"))

	seq := gesture.NewSequencer()
	defer seq.Close()
	disp := gesture.NewDispatcher(device, seq, logging.Component("gesture"))

	controller := bridge.New(cfg, device, device, disp, rec, logging.Component("bridge"))
	controller.ResetSession()

	sim := keysim.New(logging.Component("keysim"))
	if err := sim.Start(); err != nil {
		log.Fatal().Err(err).Msg("keyboard hook failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		sim.Stop()
		cancel()
		// Exit directly to avoid gohook's C cleanup crash. The OS reclaims
		// the event hook on process exit.
		os.Exit(0)
	}()

	log.Info().Msg("keysim running: b=back s=shutter o=ok p=plus m=minus f=fn, Ctrl+C to quit")
	controller.Run(ctx, sim.Events())
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}
	return config.Default(), nil
}
