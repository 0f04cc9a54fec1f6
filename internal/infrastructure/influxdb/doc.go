// Package influxdb stores state history as time series: every state
// change the mirror accepts (light on/brightness, fan on/speed) plus
// periodic radio-activity samples per codec.
//
// Built on influxdb-client-go v2. Writes use the non-blocking batched
// API, so recording history never delays frame handling; batch errors
// come back asynchronously through SetOnError, and connection or health
// problems are returned directly. All methods are safe for concurrent
// use.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without history
//	}
//	defer client.Close()
//
//	client.WriteLightState("kitchen-ceiling", 0, true, 75)
//
// Batch size and flush interval come from config.yaml
// (influxdb.batch_size, influxdb.flush_interval).
package influxdb
