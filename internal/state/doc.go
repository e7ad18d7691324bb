// Package state stores the latest observed fact for every state name the
// loaded rules depend on.
//
// Facts are pushed by producers (recognisers, MQTT ingest, operations) from
// any goroutine. Each name has its own Recorder with its own lock, so
// producers reporting unrelated states never contend. A name may declare
// mutually exclusive partners: recording it clears every partner in the
// same critical section.
//
// Names outside the registry's valid set are ignored rather than rejected.
// A fact can legitimately arrive for a state that a rule reload removed.
package state
