package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSignal writes a monitoring signal to InfluxDB.
//
// This is the primary method for exporting telemetry bus signals.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - name: The hierarchical signal name (e.g., "device.event", "error.handled")
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Numeric measurements carried by the signal
//
// Example:
//
//	client.WriteSignal("processing.complete",
//	    map[string]string{"node": "core-01"},
//	    map[string]interface{}{"duration": 12.0, "count": 1.0})
func (c *Client) WriteSignal(name string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	if len(fields) == 0 {
		// InfluxDB rejects points without fields.
		fields = map[string]interface{}{"count": 1.0}
	}

	allTags := map[string]string{"signal": name}
	for k, v := range tags {
		allTags[k] = v
	}

	point := write.NewPoint("signals", allTags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over measurement,
// tags and fields. Use this for data that doesn't fit the signal shape.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
