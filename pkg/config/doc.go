// Package config loads and validates the quarry configuration file.
//
// Configuration is YAML with three sections: database, policy and
// telemetry. Every field has a sensible default, so a missing file or a
// partial file is fine.
//
//	database:
//	  path: /var/db/quarry/pkgdb.sqlite
//	  busy_timeout: 5s
//	  watch_external: true
//	policy:
//	  enabled: true
//	  holds:
//	    - linux-firmware
//	  paths:
//	    - /etc/quarry/policies
//	  watch_paths: true
//	telemetry:
//	  log_level: info
//	  metrics:
//	    enabled: true
//	    listen_address: ":9090"
package config
