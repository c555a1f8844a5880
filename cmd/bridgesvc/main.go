package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"time"

	config "github.com/nalam-kiosk/rfid-services/configs"
	"github.com/nalam-kiosk/rfid-services/internal/bridgesvc/bridge"
	"github.com/nalam-kiosk/rfid-services/internal/bridgesvc/reader"
	"github.com/nalam-kiosk/rfid-services/internal/bridgesvc/relay"

	"github.com/lestrrat-go/backoff/v2"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "bridge"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Invalid %s value: %v", key, err)
	}
	return n
}

func main() {
	config.CreateUniqueInstance(SERVICE_NAME)

	portPath := os.Getenv("SERIAL_PORT")
	if portPath == "" {
		log.Fatal("SERIAL_PORT is required (e.g. /dev/ttyUSB0 or COM10)")
	}
	baudRate := envOrInt("SERIAL_BAUD", 9600)
	ingestURL := envOr("INGEST_URL", "http://localhost:3000/api/log-rfid")
	kioskLocation := envOr("KIOSK_LOCATION", "Nalam_Hub_01")
	queueSize := envOrInt("BRIDGE_QUEUE_SIZE", 32)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		log.Info("interrupt received, shutting bridge down")
		cancel()
	}()

	rl := relay.NewRelay(relay.Config{
		URL:           ingestURL,
		KioskLocation: kioskLocation,
	})

	br := bridge.NewBridge(queueSize, func(ctx context.Context, uid string) error {
		_, err := rl.Send(ctx, uid)
		return err
	})
	go br.Run(ctx)

	// a kiosk without its reader is misconfigured, refuse to run degraded
	port, err := reader.OpenPort(portPath, baudRate)
	if err != nil {
		log.Fatalf("Failed to open serial port: %v", err)
	}

	log.Infof("bridge active on %s (baud %d), forwarding to %s as %s",
		portPath, baudRate, ingestURL, kioskLocation)

	// runtime disconnects get a bounded reconnect budget; exhausting it
	// exits nonzero so a supervisor can restart the process
	reconnect := backoff.Exponential(
		backoff.WithMinInterval(time.Second),
		backoff.WithMaxInterval(30*time.Second),
		backoff.WithJitterFactor(0.1),
		backoff.WithMaxRetries(6),
	)

	for {
		// a blocked serial read only returns once the port is closed, so
		// cancellation closes the device out from under the scanner
		p := port
		watchDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				p.Close()
			case <-watchDone:
			}
		}()

		tr := reader.NewTagReader(port, br.Enqueue)
		err := tr.Run(ctx)
		close(watchDone)
		port.Close()

		if ctx.Err() != nil {
			log.Infof("%s service stopped, %d scans dropped this run", SERVICE_NAME, br.Dropped())
			return
		}
		if err == nil {
			// stream ended without error: device went away quietly
			log.Warn("serial stream ended, attempting to reopen")
		} else {
			log.Errorf("Serial Port Error: %v", err)
		}

		port, err = reader.ReopenWithBackoff(ctx, portPath, baudRate, reconnect)
		if err != nil {
			if ctx.Err() != nil {
				log.Infof("%s service stopped, %d scans dropped this run", SERVICE_NAME, br.Dropped())
				return
			}
			log.Errorf("%v, giving up", err)
			os.Exit(1)
		}
		log.Infof("serial port %s reopened", portPath)
	}
}
