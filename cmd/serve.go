package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Enigma-Deez/Roll-Call/internal/attendance"
	"github.com/Enigma-Deez/Roll-Call/internal/config"
	"github.com/Enigma-Deez/Roll-Call/internal/constants"
	"github.com/Enigma-Deez/Roll-Call/internal/faceclient"
	"github.com/Enigma-Deez/Roll-Call/internal/publish"
	"github.com/Enigma-Deez/Roll-Call/internal/web"
	"github.com/Enigma-Deez/Roll-Call/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance API server",
	Long: `Start the Roll-Call HTTP API.

The server enrolls identities, starts and stops attendance sessions on the
configured camera, and streams session events over websockets. When
MQTT_BROKER is set, events are also published to the broker.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil {
			port = p
		}
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// startPublisher connects to the MQTT broker when one is configured.
func startPublisher(ctx context.Context, cfg config.MQTTConfig) (*publish.MQTTPublisher, error) {
	if cfg.Broker == "" {
		fmt.Println("MQTT publishing disabled (MQTT_BROKER not set)")
		return nil, nil
	}
	pub, err := publish.NewMQTTPublisher(cfg)
	if err != nil {
		return nil, err
	}
	if err := pub.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	fmt.Printf("Publishing session events to %s (%s)\n", cfg.Broker, cfg.Encoding)
	return pub, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cameras, err := newCameraSource(cfg.Camera)
	if err != nil {
		return err
	}
	oracle := faceclient.NewClient(cfg.FaceAPI.URL, cfg.FaceAPI.MaxImageSize)

	broadcaster := handlers.NewBroadcaster()
	sinks := attendance.MultiSink{broadcaster}

	publisher, err := startPublisher(ctx, cfg.MQTT)
	if err != nil {
		return err
	}
	if publisher != nil {
		sinks = append(sinks, publisher)
		defer publisher.Close()
	}

	engine := attendance.NewEngine(store, oracle, cameras, attendance.NewRegistry(nil),
		attendance.ConfigFrom(cfg), attendance.WithEvents(sinks), attendance.WithLogger(slog.Default()))

	if n, err := engine.CloseOrphaned(ctx); err != nil {
		return fmt.Errorf("failed to close orphaned sessions: %w", err)
	} else if n > 0 {
		fmt.Printf("Closed %d session(s) left active by a previous run\n", n)
	}
	go engine.RunJanitor(ctx)

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(web.Services{
		Engine:      engine,
		Enroller:    attendance.NewEnroller(store, oracle),
		Identities:  store,
		Detector:    oracle,
		Broadcaster: broadcaster,
		Threshold:   cfg.Matching.Tolerance,
	}, port, host)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeoutSeconds*time.Second)
		defer shutdownCancel()

		// Sessions end first so their rows are closed while the store is still open.
		if err := engine.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error stopping sessions: %v\n", err)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Roll-Call API on http://%s:%d/api/v1\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-stopped
	return nil
}
