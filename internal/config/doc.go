// Package config provides configuration parsing for kodbox.
//
// The configuration is stored in kodbox.json (or kodbox.yaml) in the
// working directory. This package handles loading, saving, and validating
// configuration.
//
// # Configuration File Structure
//
//	{
//	  "mirror": {
//	    "backend": "sqlite",
//	    "slot": "StorageBox",
//	    "session": "tab-1",
//	    "ttl": "24h",
//	    "sql": {"dsn": "kodbox.db", "table": "kodbox_mirror"},
//	    "redis": {"addr": "localhost:6379", "prefix": "kodbox:mirror:"},
//	    "s3": {"bucket": "state", "prefix": "kodbox/", "region": "us-east-1"}
//	  },
//	  "server": {"host": "localhost", "port": 7070},
//	  "metrics": {"enabled": true, "path": "/metrics"},
//	  "log": {"level": "info"}
//	}
//
// # Usage
//
//	cfg, err := config.LoadOrDefault("kodbox.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Backend:", cfg.Mirror.Backend)
package config
