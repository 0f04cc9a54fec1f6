package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteLightState records one accepted light state change. brightness
// of -1 means the change carried no level, and the field is omitted so
// queries don't see a bogus zero.
func (c *Client) WriteLightState(device string, entityIndex int, on bool, brightness int) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{"on": on}
	if brightness >= 0 {
		fields["brightness"] = brightness
	}

	c.writeAPI.WritePoint(write.NewPoint("light_state",
		map[string]string{
			"device": device,
			"entity": strconv.Itoa(entityIndex),
		},
		fields, time.Now()))
}

// WriteFanState records one accepted fan state change. speed of -1
// means the change carried no speed step.
func (c *Client) WriteFanState(device string, entityIndex int, on bool, speed int) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{"on": on}
	if speed >= 0 {
		fields["speed"] = speed
	}

	c.writeAPI.WritePoint(write.NewPoint("fan_state",
		map[string]string{
			"device": device,
			"entity": strconv.Itoa(entityIndex),
		},
		fields, time.Now()))
}

// WriteRadioActivity records how many frames a codec produced in a
// sample interval. codecID is "unknown" for undecodable traffic.
func (c *Client) WriteRadioActivity(codecID string, count int) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint("radio_activity",
		map[string]string{"codec": codecID},
		map[string]interface{}{"count": count},
		time.Now()))
}

// WritePoint records an arbitrary measurement. Keep tags low-cardinality;
// put the data in fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime is WritePoint with an explicit timestamp, for data
// that arrives late.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
