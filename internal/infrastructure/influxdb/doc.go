// Package influxdb stores source readings in InfluxDB v2 for the telemetry
// plugin, using the official influxdb-client-go library.
//
// Each reading becomes a hemma_reading point tagged with its source and
// name, one field per numeric value. Points are batched (batch_size,
// flush_interval) and writes never block the hub.
package influxdb
