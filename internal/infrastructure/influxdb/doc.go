// Package influxdb writes state fact history to InfluxDB v2.
//
// Writes are batched and asynchronous: WritePoint only queues, and write
// failures surface through SetOnError. The engine keeps running when the
// server is unreachable after startup.
//
// Configuration:
//
//	influxdb:
//	  enabled: true
//	  url: "http://localhost:8086"
//	  org: "grayrules"
//	  bucket: "history"
//	  batch_size: 100
//	  flush_interval: 10   # seconds
//
// The token should come from GRAYRULES_INFLUXDB_TOKEN.
package influxdb
