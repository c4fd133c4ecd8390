package config

import (
	_ "embed"
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database DatabaseConfig
	FaceAPI  FaceAPIConfig
	Camera   CameraConfig
	Matching MatchingConfig
	Loop     LoopConfig
	Registry RegistryConfig
	MQTT     MQTTConfig
}

type DatabaseConfig struct {
	URL          string // postgres://, mysql:// or sqlite:// connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type FaceAPIConfig struct {
	URL          string `yaml:"url"`            // face detection/encoding server
	MaxImageSize int    `yaml:"max_image_size"` // uploads are downscaled to fit this box
}

type CameraConfig struct {
	Backend  string `yaml:"backend"` // opencv or gstreamer
	Device   int    `yaml:"device"`
	Pipeline string `yaml:"pipeline"` // gstreamer launch string, %d is the device index
}

type MatchingConfig struct {
	Tolerance float64       `yaml:"tolerance"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

type LoopConfig struct {
	FrameRetryDelay     time.Duration `yaml:"frame_retry_delay"`
	PacingInterval      time.Duration `yaml:"pacing_interval"`
	CollaboratorTimeout time.Duration `yaml:"collaborator_timeout"` // 0 disables the bound
	LastSeenFlush       time.Duration `yaml:"last_seen_flush"`      // 0 writes suppressed sightings only on stop
}

type RegistryConfig struct {
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"` // host:port, empty disables publishing
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Encoding    string `yaml:"encoding"` // json or msgpack
}

// defaults mirrors the layout of defaults.yaml.
type defaults struct {
	Camera   CameraConfig   `yaml:"camera"`
	Matching MatchingConfig `yaml:"matching"`
	Loop     LoopConfig     `yaml:"loop"`
	Registry RegistryConfig `yaml:"registry"`
	FaceAPI  FaceAPIConfig  `yaml:"face_api"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration ("30s", "1m").
// A bare number is taken as seconds, which is how the cool-down was configured historically.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n >= 0 {
		return time.Duration(n * float64(time.Second))
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		FaceAPI: FaceAPIConfig{
			URL:          envString("FACE_API_URL", d.FaceAPI.URL),
			MaxImageSize: envInt("MAX_IMAGE_SIZE", d.FaceAPI.MaxImageSize),
		},
		Camera: CameraConfig{
			Backend:  envString("CAMERA_BACKEND", d.Camera.Backend),
			Device:   envInt("CAMERA_DEVICE", d.Camera.Device),
			Pipeline: envString("CAMERA_PIPELINE", d.Camera.Pipeline),
		},
		Matching: MatchingConfig{
			Tolerance: envFloat("FACE_MATCH_TOLERANCE", d.Matching.Tolerance),
			Cooldown:  envDuration("COOLDOWN_WINDOW", d.Matching.Cooldown),
		},
		Loop: LoopConfig{
			FrameRetryDelay:     envDuration("FRAME_RETRY_DELAY", d.Loop.FrameRetryDelay),
			PacingInterval:      envDuration("PACING_INTERVAL", d.Loop.PacingInterval),
			CollaboratorTimeout: envDuration("COLLABORATOR_TIMEOUT", d.Loop.CollaboratorTimeout),
			LastSeenFlush:       envDuration("LAST_SEEN_FLUSH_INTERVAL", d.Loop.LastSeenFlush),
		},
		Registry: RegistryConfig{
			Retention:     envDuration("REGISTRY_RETENTION", d.Registry.Retention),
			PruneInterval: envDuration("REGISTRY_PRUNE_INTERVAL", d.Registry.PruneInterval),
		},
		MQTT: MQTTConfig{
			Broker:      os.Getenv("MQTT_BROKER"),
			ClientID:    envString("MQTT_CLIENT_ID", d.MQTT.ClientID),
			TopicPrefix: envString("MQTT_TOPIC_PREFIX", d.MQTT.TopicPrefix),
			Encoding:    envString("MQTT_ENCODING", d.MQTT.Encoding),
		},
	}
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if c.Matching.Tolerance <= 0 {
		return errors.New("FACE_MATCH_TOLERANCE must be positive")
	}
	switch c.Camera.Backend {
	case "opencv", "gstreamer":
	default:
		return errors.New("CAMERA_BACKEND must be opencv or gstreamer")
	}
	switch c.MQTT.Encoding {
	case "json", "msgpack":
	default:
		return errors.New("MQTT_ENCODING must be json or msgpack")
	}
	return nil
}
