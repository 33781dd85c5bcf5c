// Package config provides configuration parsing for domafic servers.
//
// The configuration is stored in domafic.json at the project root.
// This package handles loading, saving, and validating configuration.
// Every field is optional; missing values fall back to the defaults of New.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "0.0.0.0",
//	    "port": 8080,
//	    "wsPath": "/ws",
//	    "allowedOrigins": ["https://example.com"]
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "path": "/metrics",
//	    "namespace": "todo"
//	  },
//	  "tracing": {"enabled": false},
//	  "log": {"level": "debug", "format": "json"},
//	  "effects": {"timeout": "10s"},
//	  "app": {"root": "#app", "title": "Todos"}
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
