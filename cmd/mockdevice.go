package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rew2streammagic/internal/config"
	"rew2streammagic/internal/devicemock"
	"rew2streammagic/internal/logger"
)

const mockShutdownTimeout = 10 * time.Second

var (
	mockPort       string
	mockAPIVersion string
)

// mockDeviceCmd runs the emulated streamer so the applier can be exercised
// without hardware on the network.
var mockDeviceCmd = &cobra.Command{
	Use:   "mock-device",
	Short: "Run an emulated StreamMagic device",
	Long: `Run an emulated StreamMagic control endpoint for local testing.

Example:
  rew2streammagic mock-device --port 8080
  rew2streammagic --host 127.0.0.1:8080 living-room.txt`,
	SilenceUsage: true,
	RunE:         runMockDevice,
}

func init() {
	rootCmd.AddCommand(mockDeviceCmd)
	mockDeviceCmd.Flags().StringVar(&mockPort, "port", "8080", "port to listen on")
	mockDeviceCmd.Flags().StringVar(&mockAPIVersion, "api-version", "", "api version the mock reports (overrides config)")
}

func runMockDevice(cmd *cobra.Command, args []string) error {
	if err := config.Load(); err != nil {
		return err
	}
	log := logger.Get(resolvedLogLevel())

	apiVersion := mockAPIVersion
	if apiVersion == "" {
		apiVersion = config.MinAPIVersion()
	}

	srv := devicemock.New(apiVersion, log)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Run(mockPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Infow("mock device listening", "port", mockPort, "api_version", apiVersion)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Infow("shutting down mock device...")
	ctx, cancel := context.WithTimeout(context.Background(), mockShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
