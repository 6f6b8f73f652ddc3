package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// measurementPush is the measurement every push outcome is written to.
const measurementPush = "status_push"

// PushPoint is one push attempt as recorded in InfluxDB.
type PushPoint struct {
	Address   string
	Driver    string
	Transport string
	Status    string
	Value     int
	Text      string
	Duration  time.Duration
	At        time.Time
}

// WritePush writes a push outcome. The write is non-blocking and batched.
// Address, driver, transport and status are tags; value, text and duration
// are fields.
func (c *Client) WritePush(p PushPoint) {
	if !c.IsConnected() {
		return
	}

	at := p.At
	if at.IsZero() {
		at = time.Now()
	}

	point := write.NewPoint(
		measurementPush,
		map[string]string{
			"address":   p.Address,
			"driver":    p.Driver,
			"transport": p.Transport,
			"status":    p.Status,
		},
		map[string]interface{}{
			"value":       p.Value,
			"text":        p.Text,
			"duration_ms": p.Duration.Milliseconds(),
		},
		at,
	)
	c.writeAPI.WritePoint(point)
}
