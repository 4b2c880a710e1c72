// Package plugins holds the hub's domain plugins.
//
// Each plugin keeps a small cache of the latest readings of one kind,
// broadcasts it when a new reading arrives, and replays it to every client
// that says hello:
//
//   - DHT: temperature and humidity
//   - P1: the smart energy meter
//   - Solar: inverter totals and derived production
//   - Windmills: cooperative wind turbine shares
//
// OTA flashes firmware through the firmware bridge on client request.
// History and Telemetry persist readings to SQLite and InfluxDB.
package plugins
