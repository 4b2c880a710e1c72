package app

import (
	"context"
	"fmt"

	"github.com/nerrad567/hemma-hub/internal/bridges/firmware"
	"github.com/nerrad567/hemma-hub/internal/bridges/sensors"
	"github.com/nerrad567/hemma-hub/internal/bridges/windcentrale"
	"github.com/nerrad567/hemma-hub/internal/hub"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/config"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/logging"
	"github.com/nerrad567/hemma-hub/internal/plugin"
	"github.com/nerrad567/hemma-hub/internal/plugins"
	"github.com/nerrad567/hemma-hub/internal/source"
)

// builder carries what factories need to construct a module.
type builder struct {
	ctx    context.Context
	cfg    *config.Config
	logger *logging.Logger
	hub    *hub.Hub
	res    *resources
}

// SourceFactory constructs a source from its configuration entry.
type SourceFactory func(b *builder, m config.ModuleConfig) (source.Source, error)

// PluginFactory constructs a plugin from its configuration entry. Sources
// are already registered with the hub when plugins are built.
type PluginFactory func(b *builder, m config.ModuleConfig) (plugin.Plugin, error)

var sourceFactories = map[string]SourceFactory{
	"bridge":       newFirmwareSource,
	"firmware":     newFirmwareSource,
	"windcentrale": newWindcentraleSource,
	"sensors":      newSensorSource,
}

var pluginFactories = map[string]PluginFactory{
	"dht":          newDHTPlugin,
	"p1":           newP1Plugin,
	"solar":        newSolarPlugin,
	"windcentrale": newWindmillsPlugin,
	"ota":          newOTAPlugin,
	"history":      newHistoryPlugin,
	"telemetry":    newTelemetryPlugin,
}

// SourceTypes returns the registered source capability tags.
func SourceTypes() []string { return keys(sourceFactories) }

// PluginTypes returns the registered plugin capability tags.
func PluginTypes() []string { return keys(pluginFactories) }

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func newFirmwareSource(b *builder, m config.ModuleConfig) (source.Source, error) {
	cfg := firmware.Config{
		URL:                  m.String("url", ""),
		RequestTimeout:       m.Seconds("request_timeout", 0),
		ReconnectInterval:    m.Seconds("reconnect_interval", 0),
		MaxReconnectInterval: m.Seconds("max_reconnect_interval", 0),
		QueueSize:            m.Int("queue_size", 0),
		Link:                 linkConfig(b.cfg),
	}
	return firmware.New(m.ID, cfg, firmware.Options{
		Logger:  b.logger.With("source", m.ID),
		Metrics: b.hub.Metrics(),
	}), nil
}

func newWindcentraleSource(b *builder, m config.ModuleConfig) (source.Source, error) {
	holdings, err := windcentrale.ParseHoldings(m.String("mills", ""))
	if err != nil {
		return nil, err
	}
	cfg := windcentrale.Config{
		Holdings:      holdings,
		URLTemplate:   m.String("url", ""),
		RetryInterval: m.Seconds("retry_interval", 0),
	}
	return windcentrale.New(m.ID, cfg, windcentrale.Options{Logger: b.logger.With("source", m.ID)}), nil
}

func newSensorSource(b *builder, m config.ModuleConfig) (source.Source, error) {
	client, err := b.res.MQTT()
	if err != nil {
		return nil, err
	}
	qos := m.Int("qos", b.cfg.MQTT.QoS)
	if qos < 0 || qos > 2 {
		return nil, fmt.Errorf("sensors qos %d out of range", qos)
	}
	return sensors.New(m.ID, client, m.String("topic", ""), byte(qos), b.logger.With("source", m.ID)), nil
}

func newDHTPlugin(b *builder, m config.ModuleConfig) (plugin.Plugin, error) {
	return plugins.NewDHT(m.ID, b.hub), nil
}

func newP1Plugin(b *builder, m config.ModuleConfig) (plugin.Plugin, error) {
	return plugins.NewP1(m.ID, b.hub), nil
}

func newSolarPlugin(b *builder, m config.ModuleConfig) (plugin.Plugin, error) {
	return plugins.NewSolar(m.ID, b.hub), nil
}

// newWindmillsPlugin takes holdings from its own "mills" option, or else
// from the windcentrale source named by "source".
func newWindmillsPlugin(b *builder, m config.ModuleConfig) (plugin.Plugin, error) {
	if list := m.String("mills", ""); list != "" {
		holdings, err := windcentrale.ParseHoldings(list)
		if err != nil {
			return nil, err
		}
		return plugins.NewWindmills(m.ID, b.hub, holdings), nil
	}

	name := m.String("source", "windcentrale")
	src, ok := b.hub.Source(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHoldings, name)
	}
	held, ok := src.(interface{ Holdings() []windcentrale.Holding })
	if !ok {
		return nil, fmt.Errorf("%w: source %s has no holdings", ErrNoHoldings, name)
	}
	return plugins.NewWindmills(m.ID, b.hub, held.Holdings()), nil
}

func newOTAPlugin(b *builder, m config.ModuleConfig) (plugin.Plugin, error) {
	name := m.String("source", "bridge")
	src, ok := b.hub.Source(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingSource, name)
	}
	commander, ok := src.(source.Commander)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCommander, name)
	}
	return plugins.NewOTA(m.ID, b.hub, commander, m.Seconds("settle", 0)), nil
}

func newHistoryPlugin(b *builder, m config.ModuleConfig) (plugin.Plugin, error) {
	db, err := b.res.DB(b.ctx)
	if err != nil {
		return nil, err
	}
	return plugins.NewHistory(m.ID, b.hub, db, m.Int("keep", 0)), nil
}

func newTelemetryPlugin(b *builder, m config.ModuleConfig) (plugin.Plugin, error) {
	client, err := b.res.Influx()
	if err != nil {
		return nil, err
	}
	return plugins.NewTelemetry(m.ID, b.hub, client), nil
}
