// Package config handles loading and validating hemma hub configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Private and signing keys should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Sources and plugins are listed under hub.sources and hub.plugins. Each
// entry has an id, an optional type naming the implementation (defaulting
// to the id) and any module-specific keys alongside:
//
//	hub:
//	  sources:
//	    - id: bridge
//	      type: firmware
//	      url: ws://127.0.0.1:9876
//	  plugins:
//	    - id: dht
//
// Usage:
//
//	cfg, err := config.Load("configs/hemma.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.LocalStream.Address())
package config
