// Package ingest feeds state facts from MQTT into the scheduler.
//
// Single facts arrive on grayrules/fact/{state} with an optional JSON body:
//
//	{"ts": 1767268800.25, "value": 0.82, "cleared": false}
//
// An empty body records the state now. Batches arrive on grayrules/facts as
// an array of the same objects with a "name" field and are applied together.
package ingest
