// Package influxdb records push outcomes in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring. Every status
// push the bridge attempts becomes one point in the "status_push" measurement,
// tagged by node address, driver, transport and outcome.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePush(influxdb.PushPoint{Address: "gvld_0", Driver: "GPV", ...})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
