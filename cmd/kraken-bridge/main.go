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
	"github.com/pafech/kraken-bridge/internal/ble"
	"github.com/pafech/kraken-bridge/internal/bridge"
	"github.com/pafech/kraken-bridge/internal/config"
	"github.com/pafech/kraken-bridge/internal/gesture"
	"github.com/pafech/kraken-bridge/internal/journal"
	"github.com/pafech/kraken-bridge/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/kraken-bridge/config.yaml)")
	journalDump := flag.Bool("journal-dump", false, "print the latest dive session from the journal and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel)
	log := logging.Component("main")

	if *journalDump {
		if cfg.Journal.Path == "" {
			fmt.Fprintln(os.Stderr, "journal is disabled in config")
			os.Exit(1)
		}
		j, err := journal.Open(cfg.Journal.Path, logging.Component("journal"))
		if err != nil {
			log.Fatal().Err(err).Msg("journal open failed")
		}
		defer j.Close()
		if err := j.Dump(os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("journal dump failed")
		}
		return
	}

	printBanner(cfg)

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

	remote := ble.NewRemote(ble.NewHardwareAdapter(), ble.RemoteOptions{
		Address:    cfg.Housing.Address,
		NamePrefix: cfg.Housing.NamePrefix,
	}, func(u ble.Update) {
		rec.Status(u.Status.String(), u.Message)
	}, logging.Component("ble"))
	remote.OnSession(controller.ResetSession)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live re-tuning of calibration and delays between dives.
	if *configPath != "" || fileExists(config.DefaultConfigPath()) {
		watchPath := *configPath
		if watchPath == "" {
			watchPath = config.DefaultConfigPath()
		}
		if err := config.Watch(ctx, watchPath, logging.Component("config"), controller.ApplyConfig); err != nil {
			log.Warn().Err(err).Msg("config watch unavailable")
		}
	}

	if err := remote.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("housing connection failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		remote.Disconnect()
		device.StayAwake(false)
		cancel()
	}()

	log.Info().Msg("bridge running, press housing buttons to control the phone")
	controller.Run(ctx, remote.Events())
}

// loadConfig loads the config from the specified path, or falls back to the
// default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if fileExists(defaultPath) {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	return config.Default(), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== kraken-bridge ===")
	if cfg.Housing.Address != "" {
		fmt.Printf("  Housing: %s\n", cfg.Housing.Address)
	} else {
		fmt.Printf("  Housing: scan for %q*\n", cfg.Housing.NamePrefix)
	}
	fmt.Printf("  Camera:  %s\n", cfg.Apps.Camera)
	fmt.Printf("  Gallery: %s\n", cfg.Apps.Gallery)
	fmt.Printf("  Adb:     %s", cfg.Adb.Path)
	if cfg.Adb.Serial != "" {
		fmt.Printf(" (-s %s)", cfg.Adb.Serial)
	}
	fmt.Println()
	fmt.Printf("  Journal: %s\n", orDisabled(cfg.Journal.Path))
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("=====================")
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}
