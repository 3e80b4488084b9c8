package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// applyEnv overlays POSTURE_* environment variables.
func applyEnv(c *Config) {
	c.Server.Addr = getEnv("POSTURE_ADDR", c.Server.Addr)
	c.Server.StaticDir = getEnv("POSTURE_STATIC_DIR", c.Server.StaticDir)

	c.Store.Path = getEnv("POSTURE_DB_PATH", c.Store.Path)

	c.Posture.TorsoThreshold = getEnvFloat("POSTURE_TORSO_THRESHOLD", c.Posture.TorsoThreshold)
	c.Posture.NeckThreshold = getEnvFloat("POSTURE_NECK_THRESHOLD", c.Posture.NeckThreshold)
	c.Posture.ShoulderTiltThreshold = getEnvFloat("POSTURE_TILT_THRESHOLD", c.Posture.ShoulderTiltThreshold)
	c.Posture.SevereFactor = getEnvFloat("POSTURE_SEVERE_FACTOR", c.Posture.SevereFactor)
	c.Posture.Alpha = getEnvFloat("POSTURE_EMA_ALPHA", c.Posture.Alpha)
	c.Posture.LockDistance = getEnvFloat("POSTURE_LOCK_DISTANCE", c.Posture.LockDistance)

	c.Detector.ScriptPath = getEnv("POSTURE_SCRIPT_PATH", c.Detector.ScriptPath)
	c.Detector.PythonPath = getEnv("POSTURE_PYTHON", c.Detector.PythonPath)
	c.Detector.ModelPath = getEnv("POSTURE_MODEL_PATH", c.Detector.ModelPath)

	c.Session.IdleTimeout = getEnvDuration("POSTURE_SESSION_IDLE_TIMEOUT", c.Session.IdleTimeout)
	c.Session.RestoreBaseline = getEnvBool("POSTURE_RESTORE_BASELINE", c.Session.RestoreBaseline)

	c.Camera.Device = getEnvInt("POSTURE_CAMERA_DEVICE", c.Camera.Device)
	c.Camera.User = getEnv("POSTURE_CAMERA_USER", c.Camera.User)

	c.MQTT.Enabled = getEnvBool("POSTURE_MQTT_ENABLED", c.MQTT.Enabled)
	c.MQTT.Broker = getEnv("POSTURE_MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.Username = getEnv("POSTURE_MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv("POSTURE_MQTT_PASSWORD", c.MQTT.Password)

	c.ClickHouse.Enabled = getEnvBool("POSTURE_CLICKHOUSE_ENABLED", c.ClickHouse.Enabled)
	c.ClickHouse.Addr = getEnv("POSTURE_CLICKHOUSE_ADDR", c.ClickHouse.Addr)
	c.ClickHouse.Username = getEnv("POSTURE_CLICKHOUSE_USER", c.ClickHouse.Username)
	c.ClickHouse.Password = getEnv("POSTURE_CLICKHOUSE_PASS", c.ClickHouse.Password)

	c.Alerts.Enabled = getEnvBool("POSTURE_ALERTS_ENABLED", c.Alerts.Enabled)
	c.Alerts.PluginDir = getEnv("POSTURE_PLUGIN_DIR", c.Alerts.PluginDir)
	c.Alerts.After = getEnvDuration("POSTURE_ALERT_AFTER", c.Alerts.After)

	c.Log.Level = getEnv("POSTURE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("POSTURE_LOG_FORMAT", c.Log.Format)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("ignoring invalid float in environment", "key", key, "error", err)
		return defaultValue
	}
	return floatValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("ignoring invalid integer in environment", "key", key, "error", err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("ignoring invalid bool in environment", "key", key, "error", err)
		return defaultValue
	}
	return boolValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("ignoring invalid duration in environment", "key", key, "error", err)
		return defaultValue
	}
	return d
}
