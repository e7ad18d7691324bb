package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-rules/internal/history"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rules/internal/ingest"
	"github.com/nerrad567/gray-logic-rules/internal/notify"
	"github.com/nerrad567/gray-logic-rules/internal/ops"
	"github.com/nerrad567/gray-logic-rules/internal/rules"
	"github.com/nerrad567/gray-logic-rules/internal/scheduler"
	"github.com/nerrad567/gray-logic-rules/internal/workerpool"
	"github.com/nerrad567/gray-logic-rules/migrations"
)

// healthInterval is how often run re-checks its dependencies.
const healthInterval = 30 * time.Second

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load the rule file and run the engine until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.configPath)
		},
	}
}

// run is the engine lifecycle, separated from the command for testability.
// Resources are released in reverse order of acquisition.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting grayrules", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	set, err := rules.LoadFile(cfg.Engine.RulesFile)
	if err != nil {
		return fmt.Errorf("reading rules: %w", err)
	}

	var db *database.DB
	src := rules.TemplateSource(set.Templates)
	if cfg.Engine.TemplateLibrary {
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		library, loadErr := rules.NewSQLiteTemplateRepository(db.DB).Load(ctx)
		if loadErr != nil {
			return fmt.Errorf("loading template library: %w", loadErr)
		}
		// File templates shadow library templates of the same name.
		src = rules.ChainSources(set.Templates, library)
		log.Info("template library loaded",
			"handlers", len(library.Handlers),
			"operations", len(library.Operations),
		)
	}

	var client *mqtt.Client
	var pub ops.Publisher
	if cfg.MQTT.Enabled {
		client, err = mqtt.ConnectWithLogger(ctx, cfg.MQTT, log.Component("mqtt"))
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		pub = client
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled, command operations are unavailable")
	}

	// Fact history is best-effort: the engine runs without it.
	var influx *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influx, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, fact history disabled", "error", err)
		} else {
			defer func() {
				log.Info("closing InfluxDB")
				influx.Close() //nolint:errcheck // Close flushes and always returns nil
			}()
			influx.SetOnError(func(err error) {
				log.Warn("InfluxDB write failed", "error", err)
			})
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	pool := workerpool.New(cfg.Engine.Workers)
	defer pool.Shutdown()

	var sched *scheduler.Scheduler
	factory := ops.NewFactory(pub, ops.ClearFunc(func(name string) bool { return sched.Clear(name) }))
	sched = scheduler.New(pool, factory,
		scheduler.WithLogger(log.Component("scheduler")),
		scheduler.WithIdleSpin(cfg.IdleSpinDuration()),
	)
	defer sched.Close()

	if err := sched.LoadRules(set, src, rules.LoadOptions{Catalogue: cfg.Engine.Catalogue}); err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	log.Info("rule file compiled", "file", cfg.Engine.RulesFile)

	if client != nil {
		if cfg.Notify.Enabled {
			notify.New(client,
				notify.WithLogger(log.Component("notify")),
				notify.WithChainEvents(cfg.Notify.Events),
			).Attach(sched)
		}
		var sink ingest.Recorder = sched
		if influx != nil {
			sink = history.New(sched, influx)
		}
		in := ingest.New(sink, byte(cfg.MQTT.QoS), log.Component("ingest"))
		if err := in.Subscribe(client); err != nil {
			return err
		}
	}

	if !sched.Start() {
		return fmt.Errorf("starting scheduler: %w", scheduler.ErrNoModel)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received, cleaning up")
			sched.Stop()
			log.Info("grayrules stopped")
			return nil
		case <-ticker.C:
			if err := healthCheck(ctx, db, client, influx); err != nil {
				log.Warn("health check failed", "error", err)
			}
		}
	}
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// healthCheck verifies the optional dependencies that are in use.
func healthCheck(ctx context.Context, db *database.DB, client *mqtt.Client, influx *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if client != nil {
		if err := client.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influx != nil {
		if err := influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
