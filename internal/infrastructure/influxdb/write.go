package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// ReadingMeasurement is the measurement source readings are written to.
const ReadingMeasurement = "hemma_reading"

// WriteReading queues one reading, tagged with the source that produced it
// and the reading's name. Only numeric and boolean fields are stored; a
// reading without any is skipped.
//
//	client.WriteReading("bridge", "dht", map[string]any{"temperature": 21.5}, time.Now())
func (c *Client) WriteReading(source, name string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	kept := NumericFields(fields)
	if len(kept) == 0 {
		return
	}
	tags := map[string]string{"source": source, "name": name}
	c.writer.WritePoint(write.NewPoint(ReadingMeasurement, tags, kept, ts))
}

// NumericFields returns the fields InfluxDB can store as numbers, with
// every integer widened to float64 so a field keeps one type across
// readings.
func NumericFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case float32:
			out[k] = float64(n)
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case uint64:
			out[k] = float64(n)
		case bool:
			out[k] = n
		}
	}
	return out
}
