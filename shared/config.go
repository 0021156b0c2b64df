// Package shared provides configuration and cross-cutting utilities used by
// every component of the bridge: environment-driven configuration, debug
// logging, and the small set of errors shared across package boundaries.
package shared

import (
	"os"
	"time"
)

// DEBUG_MODE controls debug logging throughout the bridge. Set during
// InitConfig when DEBUG is "true" or LOG_LEVEL is "debug".
var DEBUG_MODE = false

const (
	TCPPortDefault         = "12346"
	WSBridgePortDefault    = "9003"
	OTAPortDefault         = "12345"
	AdminHTTPPortDefault   = "9004"
	LogDirectoryDefault    = "logs/bridge_logs"
	PIDConfigFileDefault   = "pid_config.txt"
	TempFirmwareDirDefault = "temp_firmware"
	FrontendOriginDefault  = "http://localhost:5173"
	AuditDatabaseDefault   = "robobridge"

	WheelRadiusMeters = 0.0325
	PoseHistoryCap    = 1000
	MaxPoseDataAge    = 5 * time.Second

	RobotIdleTimeout = 60 * time.Second

	OTAChunkSize = 1024

	PIDMotorWriteSpacing = 50 * time.Millisecond

	MongoMinPoolSize    = 2
	MongoMaxPoolSize    = 10
	MongoConnectTimeout = 5 * time.Second
)

// Config is the resolved set of environment-driven settings for one process.
type Config struct {
	TCPPort         string
	WSBridgePort    string
	OTAPort         string
	AdminHTTPPort   string
	LogDirectory    string
	PIDConfigFile   string
	TempFirmwareDir string
	FrontendOrigin  string
	AuditMongoURI   string
	AuditDatabase   string
}

// InitConfig loads configuration from environment variables (after the
// caller has loaded any .env file) and sets package-level debug state.
func InitConfig() *Config {
	DEBUG_MODE = os.Getenv("DEBUG") == "true" || os.Getenv("LOG_LEVEL") == "debug"

	return &Config{
		TCPPort:         envOr("TCP_PORT", TCPPortDefault),
		WSBridgePort:    envOr("WS_BRIDGE_PORT", WSBridgePortDefault),
		OTAPort:         envOr("OTA_PORT", OTAPortDefault),
		AdminHTTPPort:   envOr("ADMIN_HTTP_PORT", AdminHTTPPortDefault),
		LogDirectory:    envOr("LOG_DIRECTORY", LogDirectoryDefault),
		PIDConfigFile:   envOr("PID_CONFIG_FILE", PIDConfigFileDefault),
		TempFirmwareDir: envOr("TEMP_FIRMWARE_DIR", TempFirmwareDirDefault),
		FrontendOrigin:  envOr("FRONTEND_ORIGIN", FrontendOriginDefault),
		AuditMongoURI:   os.Getenv("AUDIT_MONGO_URI"),
		AuditDatabase:   envOr("AUDIT_MONGO_DATABASE", AuditDatabaseDefault),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
