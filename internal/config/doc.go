// Package config loads edgerelay settings and the backend configuration mapping.
//
// # Sources
//
// Settings are read once at startup. An optional TOML file provides the base
// values and environment variables override it:
//
//	listen        = ":8000"      # EDGERELAY_LISTEN
//	runtime       = "process"    # EDGERELAY_RUNTIME (process, docker, mock)
//	instance_port = 8080         # EDGERELAY_INSTANCE_PORT
//	sleep_after   = "30s"        # EDGERELAY_SLEEP_AFTER
//	start_timeout = "30s"        # EDGERELAY_START_TIMEOUT
//	command       = "smtp-backend --verbose"  # EDGERELAY_COMMAND
//	image         = "smtp-backend:latest"     # EDGERELAY_IMAGE
//	state_dir     = "/var/lib/edgerelay"      # EDGERELAY_STATE_DIR
//	ready_path    = "/health"    # EDGERELAY_READY_PATH
//	access_log    = true         # EDGERELAY_ACCESS_LOG
//	health_interval   = "1m"     # EDGERELAY_HEALTH_INTERVAL (0 disables)
//	suspend_unhealthy = false    # EDGERELAY_SUSPEND_UNHEALTHY
//
//	[backend]
//	SMTP_HOST = "smtp.example.com"   # SMTP_HOST
//	...
//
// # Configuration Mapping
//
// Mapping is the set of entries injected into each backend instance. It holds
// SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, RECIPIENT_EMAIL and
// API_KEY copied verbatim, plus SERVER_PORT set to the instance port.
// Loading fails with a configuration error when any required entry is
// missing or empty.
package config
