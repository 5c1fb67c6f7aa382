package metrics

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStatusSample records a point-in-time snapshot of the game server.
//
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteStatusSample(running bool, players int, uptime time.Duration, pid int) {
	if !c.IsConnected() {
		return
	}

	runningValue := 0
	if running {
		runningValue = 1
	}

	point := write.NewPoint(
		"server_status",
		map[string]string{
			"server": "dayz",
		},
		map[string]interface{}{
			"running":        runningValue,
			"players":        players,
			"uptime_seconds": uptime.Seconds(),
			"pid":            pid,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLifecycleEvent records a lifecycle transition (started, stopped,
// crashed, restart) as an annotated point.
func (c *Client) WriteLifecycleEvent(eventType string, pid int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"server_events",
		map[string]string{
			"server": "dayz",
			"type":   eventType,
		},
		map[string]interface{}{
			"pid": pid,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
