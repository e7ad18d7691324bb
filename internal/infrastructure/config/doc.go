// Package config loads and validates the rules engine configuration.
//
// Values are resolved in three layers: built-in defaults, the YAML file,
// then GRAYRULES_* environment variables. Validate reports every problem
// at once rather than stopping at the first.
//
// Credentials (MQTT password, InfluxDB token) should come from the environment, not the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Engine.RulesFile)
package config
