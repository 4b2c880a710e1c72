// Package app assembles a running hub from configuration.
//
// Sources and plugins are chosen by capability tag from a static factory
// table. Infrastructure (MQTT, SQLite, InfluxDB) is connected only when a
// configured module needs it, and every opened client gets a health check
// on the ops listener.
package app
