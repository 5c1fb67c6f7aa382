// dzpanel - browser-based control panel for a DayZ dedicated server.
//
// The panel supervises a single server process on the same host: start and
// stop, launch configuration, mod list, scheduled restarts, crash detection,
// console capture, and an event log. A small HTTP API plus a WebSocket feed
// drive the browser UI; MQTT and InfluxDB integrations are optional.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/dzpanel/dzpanel/migrations"

	"github.com/dzpanel/dzpanel/internal/api"
	"github.com/dzpanel/dzpanel/internal/console"
	"github.com/dzpanel/dzpanel/internal/events"
	"github.com/dzpanel/dzpanel/internal/infrastructure/config"
	"github.com/dzpanel/dzpanel/internal/infrastructure/database"
	"github.com/dzpanel/dzpanel/internal/infrastructure/logging"
	"github.com/dzpanel/dzpanel/internal/infrastructure/metrics"
	"github.com/dzpanel/dzpanel/internal/infrastructure/mqtt"
	"github.com/dzpanel/dzpanel/internal/supervisor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path.
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting dzpanel",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if configPath == "" {
		log.Info("no config file, using defaults and environment")
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database and migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	eventRepo := events.NewSQLiteRepository(db.DB)
	consoleBuf := console.NewBuffer(cfg.Server.ConsoleLines)

	// MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB metrics (optional)
	var metricsClient *metrics.Client
	if cfg.Metrics.Enabled {
		metricsClient, err = metrics.Connect(cfg.Metrics)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := metricsClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		metricsClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.Metrics.URL,
			"bucket", cfg.Metrics.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// The supervisor's hooks fan out to the API hub, MQTT, and InfluxDB.
	// apiServer is assigned below, before Start makes it reachable.
	var apiServer *api.Server

	sup := supervisor.New(supervisor.Config{
		InstallDir:      cfg.Server.InstallDir,
		Executable:      cfg.Server.Executable,
		GracePeriod:     cfg.Server.GracePeriod,
		GracefulTimeout: cfg.Server.GracefulTimeout,
		RestartInterval: cfg.Server.RestartInterval,
		SettleDelay:     cfg.Server.SettleDelay,
		Launch:          cfg.Server.Launch,
		Mods:            cfg.Server.Mods,
		Console:         consoleBuf,
		Recorder: &eventFanout{
			repo:    eventRepo,
			mqtt:    mqttClient,
			metrics: metricsClient,
			api:     &apiServer,
			log:     log,
		},
		OnTransition: func(st supervisor.Status) {
			if apiServer != nil {
				apiServer.BroadcastStatus(st)
			}
			if mqttClient != nil {
				publishStatus(mqttClient, st, log)
			}
			if metricsClient != nil {
				metricsClient.WriteStatusSample(st.Running, st.Players, uptimeOf(st), st.PID)
			}
		},
		OnConsoleLine: func(stream, text string) {
			if apiServer != nil {
				apiServer.BroadcastConsoleLine(stream, text)
			}
		},
	})
	sup.SetLogger(log)
	log.Info("supervisor ready",
		"install_dir", cfg.Server.InstallDir,
		"executable", cfg.Server.Executable,
		"restart_interval", cfg.Server.RestartInterval,
	)

	// HTTP API and WebSocket server
	apiServer, err = api.New(api.Deps{
		Config:     cfg.API,
		Logger:     log,
		Supervisor: sup,
		Events:     eventRepo,
		DB:         db,
		MQTT:       mqttClient,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Remote commands over MQTT
	if mqttClient != nil {
		topic := mqtt.Topics{}.ServerCommand()
		err := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), func(_ string, payload []byte) error {
			return handleCommand(sup, strings.TrimSpace(string(payload)), cfg.Server.SettleDelay, log)
		})
		if err != nil {
			log.Warn("failed to subscribe to command topic", "topic", topic, "error", err)
		} else {
			log.Info("listening for MQTT commands", "topic", topic)
		}
	}

	// Periodic status samples to InfluxDB
	if metricsClient != nil {
		sampler := metrics.NewSampler(metricsClient, cfg.Metrics.Interval, func() metrics.Sample {
			st := sup.Status()
			return metrics.Sample{
				Running: st.Running,
				Players: st.Players,
				Uptime:  uptimeOf(st),
				PID:     st.PID,
			}
		})
		go sampler.Run(ctx)
	}

	if err := healthCheck(ctx, db, mqttClient, metricsClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Stop the game server before the defer chain tears down the event
	// repository and broker connections it reports into.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout+10*time.Second)
	defer cancel()
	sup.Shutdown(shutdownCtx)

	log.Info("dzpanel stopped")
	return nil
}

// getConfigPath returns the configuration file path. DZPANEL_CONFIG wins;
// otherwise the default path is used when it exists. An empty path means
// defaults plus environment overrides, which suits container deployments.
func getConfigPath() string {
	if path := os.Getenv("DZPANEL_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// handleCommand executes a remote lifecycle command received over MQTT.
func handleCommand(sup *supervisor.Supervisor, command string, settleDelay time.Duration, log *logging.Logger) error {
	log.Info("remote command received", "command", command)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch command {
	case "start":
		return sup.Start(ctx)
	case "stop":
		return sup.Stop(ctx)
	case "restart":
		if err := sup.Stop(ctx); err != nil {
			return err
		}
		time.Sleep(settleDelay)
		return sup.Start(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// publishStatus pushes a retained status snapshot to the broker.
func publishStatus(client *mqtt.Client, st supervisor.Status, log *logging.Logger) {
	payload, err := json.Marshal(map[string]any{
		"isRunning": st.Running,
		"players":   st.Players,
		"uptime":    st.Uptime,
		"pid":       st.PID,
	})
	if err != nil {
		return
	}
	if err := client.PublishRetained(mqtt.Topics{}.ServerStatus(), payload); err != nil {
		log.Warn("failed to publish status", "error", err)
	}
}

// uptimeOf converts a status snapshot to an uptime duration.
func uptimeOf(st supervisor.Status) time.Duration {
	if !st.Running || st.StartedAt.IsZero() {
		return 0
	}
	return time.Since(st.StartedAt)
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, metricsClient *metrics.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if metricsClient != nil {
		if err := metricsClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// eventFanout persists lifecycle events and mirrors them to the WebSocket
// hub, the broker, and InfluxDB. Persistence failures are returned; fan-out
// failures are logged only.
type eventFanout struct {
	repo    events.Repository
	mqtt    *mqtt.Client
	metrics *metrics.Client
	api     **api.Server
	log     *logging.Logger
}

func (f *eventFanout) Record(ctx context.Context, event *events.Event) error {
	if err := f.repo.Record(ctx, event); err != nil {
		return err
	}

	if f.api != nil && *f.api != nil {
		(*f.api).BroadcastEvent(*event)
	}
	if f.metrics != nil {
		f.metrics.WriteLifecycleEvent(event.Type, event.PID)
	}
	if f.mqtt != nil {
		payload, err := json.Marshal(event)
		if err == nil {
			if pubErr := f.mqtt.PublishEvent(mqtt.Topics{}.ServerEvents(), payload); pubErr != nil {
				f.log.Warn("failed to publish event", "type", event.Type, "error", pubErr)
			}
		}
	}
	return nil
}
