// Govee Local Bridge
//
// goveebridge keeps a remote home-automation controller up to date with the
// state of locally controlled Govee lights. It registers one node per
// configured light with the host process, answers host poll and lifecycle
// events, and pushes driver updates through the transport that matches the
// controller generation.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/govee-local-bridge/internal/api"
	"github.com/nerrad567/govee-local-bridge/internal/controller"
	"github.com/nerrad567/govee-local-bridge/internal/history"
	"github.com/nerrad567/govee-local-bridge/internal/host"
	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/config"
	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/database"
	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/govee-local-bridge/internal/node"
	"github.com/nerrad567/govee-local-bridge/internal/report"
	"github.com/nerrad567/govee-local-bridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// stopTimeout bounds the final status reports sent on shutdown.
const stopTimeout = 5 * time.Second

// retentionInterval is how often old push log entries are pruned.
const retentionInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Govee Local Bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database and node registry
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	registry := node.NewRegistry(node.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.Component("node"))
	if loadErr := registry.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading node registry: %w", loadErr)
	}
	log.Info("node registry loaded", "nodes", registry.Count())

	// Host link over MQTT
	topics := mqtt.NewTopics(cfg.Host.TopicPrefix)
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"topics", topics.Prefix(),
	)

	link, err := host.New(host.Options{
		Publisher: mqttClient,
		Topics:    topics,
		QoS:       byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
		Logger:    log.Component("host"),
	})
	if err != nil {
		return fmt.Errorf("creating host link: %w", err)
	}

	// Push pipeline
	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(collectors.NewBuildInfoCollector())
	metricsReg.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollections(collectors.GoRuntimeMemStatsCollection | collectors.GoRuntimeMetricsCollection),
	))

	pusher, err := newPusher(cfg, link, registry, report.NewMetrics(metricsReg), log)
	if err != nil {
		return err
	}
	log.Info("push transport selected",
		"generation", cfg.Controller.Generation,
		"transport", pusher.TransportName(),
	)

	checks := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}

	// Push telemetry (optional)
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		pusher.AddObserver(pushRecorder{client: influxClient})
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Push log (optional)
	var pushLog history.Repository
	if cfg.History.Enabled {
		repo := history.NewSQLiteRepository(db.DB)
		recorder := history.NewRecorder(repo, log.Component("history"))
		pusher.AddObserver(recorder)
		go recorder.RunRetention(ctx, cfg.GetHistoryRetention(), retentionInterval)
		pushLog = repo
		log.Info("push history enabled", "retention_days", cfg.History.RetentionDays)
	}

	// Status API (optional)
	if cfg.API.Enabled {
		server, srvErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			Registry: registry,
			Pusher:   pusher,
			Gatherer: metricsReg,
			History:  pushLog,
			Checks:   checks,
			Version:  version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		pusher.AddObserver(server)
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	// Controller
	ctrl, err := controller.New(controller.Options{
		Registry:      registry,
		Pusher:        pusher,
		Host:          link,
		CreateTimeout: cfg.GetCreateTimeout(),
		Logger:        log.Component("controller"),
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	if listenErr := link.Listen(ctx, ctrl); listenErr != nil {
		return fmt.Errorf("listening for host events: %w", listenErr)
	}
	if bootErr := ctrl.Bootstrap(ctx); bootErr != nil {
		return fmt.Errorf("bootstrapping controller: %w", bootErr)
	}
	go ctrl.RunPolls(ctx, cfg.GetShortPoll(), cfg.GetLongPoll())

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	ctrl.Stop(stopCtx)
	link.Close()

	log.Info("Govee Local Bridge stopped")
	return nil
}

// newPusher builds the transport for the configured controller generation
// and the pusher around it.
func newPusher(cfg *config.Config, sender report.Sender, store report.DriverStore, metrics *report.Metrics, log *logging.Logger) (*report.Pusher, error) {
	selector, err := report.NewSelector(report.SelectorOptions{
		Generation: strings.ToLower(cfg.Controller.Generation),
		Sender:     sender,
		REST: report.RESTOptions{
			Credentials: report.Credentials{
				Host:       cfg.Controller.Host,
				Port:       cfg.Controller.Port,
				Username:   cfg.Controller.Username,
				Password:   cfg.Controller.Password,
				Authorized: cfg.Controller.Authorized,
			},
			ProfileNum: cfg.Bridge.ProfileNum,
			Timeout:    cfg.GetRequestTimeout(),
			Logger:     log.Component("rest"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("selecting push transport: %w", err)
	}

	pusher, err := report.NewPusher(report.PusherOptions{
		Transport: selector,
		Store:     store,
		Metrics:   metrics,
		Logger:    log.Component("report"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating pusher: %w", err)
	}
	return pusher, nil
}

// pushRecorder writes every push result to InfluxDB.
type pushRecorder struct {
	client *influxdb.Client
}

// ObservePush implements report.Observer.
func (r pushRecorder) ObservePush(res report.Result) {
	r.client.WritePush(toPushPoint(res))
}

func toPushPoint(res report.Result) influxdb.PushPoint {
	return influxdb.PushPoint{
		Address:   res.Address,
		Driver:    string(res.Driver),
		Transport: res.Transport,
		Status:    string(res.Status),
		Value:     res.Value,
		Text:      res.Text,
		Duration:  res.Duration,
		At:        res.At,
	}
}

// getConfigPath returns the configuration file path.
// Uses GOVEEBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GOVEEBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies every infrastructure connection, returning the first
// failure.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, check := range checks {
		if err := check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
