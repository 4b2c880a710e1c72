package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/hemma-hub/internal/api"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/config"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/database"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/influxdb"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/logging"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/hemma-hub/migrations"
)

// resources connects infrastructure on first use and closes whatever was
// opened.
type resources struct {
	cfg    *config.Config
	logger *logging.Logger

	mqtt   *mqtt.Client
	db     *database.DB
	influx *influxdb.Client
}

// MQTT returns the broker client, connecting on first call.
func (r *resources) MQTT() (*mqtt.Client, error) {
	if r.mqtt != nil {
		return r.mqtt, nil
	}
	client, err := mqtt.Connect(r.cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(r.logger)
	client.SetOnConnect(func() {
		r.logger.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		r.logger.Warn("MQTT disconnected", "error", err)
	})
	r.logger.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", r.cfg.MQTT.Broker.Host, r.cfg.MQTT.Broker.Port),
		"client_id", r.cfg.MQTT.Broker.ClientID,
	)
	r.mqtt = client
	return client, nil
}

// DB returns the SQLite database, opening and migrating it on first call.
func (r *resources) DB(ctx context.Context) (*database.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := database.Open(r.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	r.logger.Info("database ready", "path", db.Path())
	r.db = db
	return db, nil
}

// Influx returns the InfluxDB client, connecting on first call.
func (r *resources) Influx() (*influxdb.Client, error) {
	if r.influx != nil {
		return r.influx, nil
	}
	client, err := influxdb.Connect(r.cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		r.logger.Error("InfluxDB write error", "error", err)
	})
	r.logger.Info("InfluxDB connected",
		"url", r.cfg.InfluxDB.URL,
		"org", r.cfg.InfluxDB.Org,
		"bucket", r.cfg.InfluxDB.Bucket,
	)
	r.influx = client
	return client, nil
}

// checks returns a health check for every opened client.
func (r *resources) checks() map[string]api.HealthChecker {
	checks := make(map[string]api.HealthChecker)
	if r.db != nil {
		checks["database"] = r.db
	}
	if r.mqtt != nil {
		checks["mqtt"] = r.mqtt
	}
	if r.influx != nil {
		checks["influxdb"] = r.influx
	}
	return checks
}

// Close closes opened clients in reverse dependency order.
func (r *resources) Close() error {
	var errs []error
	if r.influx != nil {
		r.logger.Info("closing InfluxDB connection")
		errs = append(errs, r.influx.Close())
	}
	if r.mqtt != nil {
		r.logger.Info("disconnecting from MQTT")
		errs = append(errs, r.mqtt.Close())
	}
	if r.db != nil {
		r.logger.Info("closing database")
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}
