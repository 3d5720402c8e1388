package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/servoble/internal/actuator"
	"github.com/srg/servoble/internal/gattserver"
	"github.com/srg/servoble/internal/groutine"
	"github.com/srg/servoble/internal/peripheral"
	"github.com/srg/servoble/pkg/config"
)

// serveCmd runs the peripheral until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Advertise the GATT profile and serve one client at a time",
	Long: `Registers the Control and WorkTime services, advertises them and drives
the actuators from client commands until interrupted.

Examples:
  # Simulated actuators, default profile
  servoble serve

  # Real GPIO/PWM with a config file
  servoble serve --config /etc/servoble.yaml --backend periph

  # Custom advertised name with debug logs
  servoble serve --name Workbench --verbose`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveConfigPath string
	serveBackend    string
	serveName       string
	serveVerbose    bool
)

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "YAML config file; built-in defaults when empty")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "", "Actuator backend (sim, periph); overrides the config file")
	serveCmd.Flags().StringVar(&serveName, "name", "", "Advertised device name; overrides the config file")
	serveCmd.Flags().BoolVar(&serveVerbose, "verbose", false, "Debug logging (same as --log-level debug)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd, "verbose", cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// loadServeConfig reads the config file and applies the command-line overrides
func loadServeConfig() (*config.Config, error) {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return nil, err
	}
	if serveBackend != "" {
		cfg.Backend = serveBackend
	}
	if serveName != "" {
		cfg.DeviceName = serveName
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// serve wires actuators, attribute server and BLE transport, and blocks until ctx is done
func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	layer, err := actuator.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open actuators: %w", err)
	}
	defer func() {
		if err := layer.Close(); err != nil {
			logger.WithField("error", err).Warn("Failed to release actuators")
		}
	}()

	periph, err := peripheral.New(peripheral.OptionsFromConfig(cfg, logger))
	if err != nil {
		return err
	}

	srv := gattserver.New(periph, layer, gattserver.Options{
		LineA:          cfg.Pins.OutputA,
		LineB:          cfg.Pins.OutputB,
		ReportInterval: cfg.ReportInterval,
		PollInterval:   cfg.PollInterval,
		QueueSize:      cfg.EventQueueSize,
		Logger:         logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var runErr error
	executorDone := groutine.Go(ctx, "gatt-executor", func(ctx context.Context) {
		runErr = srv.Run(ctx)
	})

	logger.WithFields(logrus.Fields{
		"name":    cfg.DeviceName,
		"backend": cfg.Backend,
	}).Info("Starting peripheral")

	err = periph.Serve(ctx, srv)
	cancel()
	<-executorDone

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.WithField("error", runErr).Error("Attribute server failed")
	}
	logger.WithField("notifications", srv.Pushes()).Info("Peripheral stopped")
	return err
}
