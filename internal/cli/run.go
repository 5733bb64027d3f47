package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/eva/internal/container"
	"github.com/harun/eva/internal/tracing"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a conversation session",
	Long: `Start a conversation session on the configured device and run it until
the user says goodbye, the device disconnects or the process is interrupted.`,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pidFile := getPIDFilePath(cfg.DataDir)
	if isRunning(pidFile) {
		return fmt.Errorf("a session is already running (PID file: %s)", pidFile)
	}
	if err := writePID(pidFile); err != nil {
		return err
	}
	defer os.Remove(pidFile)

	logs, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logs.Close()
	log := logs.Component("cli")

	if cfg.Telemetry.Tracing {
		if err := tracing.InitOpenTelemetry(tracing.Options{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			SampleRatio:    cfg.Telemetry.SampleRatio,
		}); err != nil {
			log.Warn().Err(err).Msg("Tracing disabled")
		} else {
			defer func() {
				if err := tracing.ShutdownOpenTelemetry(context.Background()); err != nil {
					log.Warn().Err(err).Msg("Failed to flush traces")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg, container.Options{
		In:     cmd.InOrStdin(),
		Out:    cmd.OutOrStdout(),
		Logger: logs.Zerolog(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to release resources")
		}
	}()

	engine, err := c.Engine()
	if err != nil {
		return fmt.Errorf("failed to build session: %w", err)
	}

	log.Info().Str("device", cfg.Device).Str("model", cfg.Agent.ChatModel).Msg("Starting EVA")
	if err := engine.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}
