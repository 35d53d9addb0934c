package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends accepted by StorageConfig.Backend.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Classifier backends accepted by ClassifierConfig.Backend.
const (
	ClassifierFake = "fake"
	ClassifierHTTP = "http"
)

// Config holds the settings shared by the catpoint binaries.
type Config struct {
	// ServerAddress is the gRPC server address for client connections.
	ServerAddress string `yaml:"server_addr"`
	// StateFile is the path to the JSON file storing state for the file backend.
	StateFile string `yaml:"state_file"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level of emitted log entries.
	LogLevel string `yaml:"log_level,omitempty"`
	// LogFormat selects the log encoder: console or json.
	LogFormat string `yaml:"log_format,omitempty"`
	// Storage selects and configures the state repository.
	Storage StorageConfig `yaml:"storage"`
	// Classifier selects and configures image classification.
	Classifier ClassifierConfig `yaml:"classifier"`
	// MQTT configures the optional MQTT bridge.
	MQTT MQTTConfig `yaml:"mqtt,omitempty"`
	// GPIO configures optional wired contacts.
	GPIO GPIOConfig `yaml:"gpio,omitempty"`
}

// StorageConfig selects the state repository backend.
type StorageConfig struct {
	// Backend is one of memory, file, redis, postgres.
	Backend string `yaml:"backend"`
	// RedisAddress is the host:port of the Redis server.
	RedisAddress string `yaml:"redis_addr,omitempty"`
	// RedisPassword authenticates against Redis.
	RedisPassword string `yaml:"redis_password,omitempty"`
	// RedisDB is the Redis logical database number.
	RedisDB int `yaml:"redis_db,omitempty"`
	// RedisKeyPrefix namespaces the Redis keys.
	RedisKeyPrefix string `yaml:"redis_key_prefix,omitempty"`
	// PostgresDSN is the lib/pq connection string.
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
}

// ClassifierConfig selects the image classifier.
type ClassifierConfig struct {
	// Backend is one of fake, http.
	Backend string `yaml:"backend"`
	// Endpoint is the URL the HTTP classifier posts frames to.
	Endpoint string `yaml:"endpoint,omitempty"`
	// ConfidenceThreshold is the minimum label confidence, in percent.
	ConfidenceThreshold float32 `yaml:"confidence_threshold"`
	// CacheSize bounds the number of memoized classification results; 0 disables caching.
	CacheSize int `yaml:"cache_size,omitempty"`
}

// MQTTConfig configures the MQTT bridge. An empty Broker disables it.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://127.0.0.1:1883.
	Broker string `yaml:"broker,omitempty"`
	// ClientID identifies this controller to the broker.
	ClientID string `yaml:"client_id,omitempty"`
	// Username authenticates against the broker.
	Username string `yaml:"username,omitempty"`
	// Password authenticates against the broker.
	Password string `yaml:"password,omitempty"`
	// TopicPrefix is prepended to every published and subscribed topic.
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// GPIOConfig configures wired contacts. An empty Lines list disables polling.
type GPIOConfig struct {
	// Chip is the GPIO character device name, e.g. gpiochip0.
	Chip string `yaml:"chip,omitempty"`
	// PollInterval is the sampling period.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	// Lines maps line offsets to sensors.
	Lines []GPIOLine `yaml:"lines,omitempty"`
}

// GPIOLine binds one GPIO line to a sensor.
type GPIOLine struct {
	// Offset is the line number on the chip.
	Offset int `yaml:"offset"`
	// Sensor is the sensor name.
	Sensor string `yaml:"sensor"`
	// Type is the sensor type name (DOOR, WINDOW, MOTION).
	Type string `yaml:"type"`
	// ActiveLow inverts the raw value: a low line means the sensor is active.
	ActiveLow bool `yaml:"active_low,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "catpoint-settings.yaml"

	// DefaultStateFilename is the default filename for the JSON state.
	DefaultStateFilename = "catpoint-state.json"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600

	// DefaultConfidenceThreshold is the default minimum cat confidence, in percent.
	DefaultConfidenceThreshold float32 = 50

	// DefaultGPIOChip is the default GPIO character device.
	DefaultGPIOChip = "gpiochip0"

	// DefaultGPIOPollInterval is the default contact sampling period.
	DefaultGPIOPollInterval = 100 * time.Millisecond

	// DefaultMQTTClientID is the default MQTT client identifier.
	DefaultMQTTClientID = "catpoint"

	// DefaultMQTTTopicPrefix is the default MQTT topic prefix.
	DefaultMQTTTopicPrefix = "catpoint/security"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errUnknownStorage is returned for unsupported storage backends.
	errUnknownStorage = errors.New("unknown storage backend")
	// errUnknownClassifier is returned for unsupported classifier backends.
	errUnknownClassifier = errors.New("unknown classifier backend")
	// errMissingSetting is returned when a backend lacks a required setting.
	errMissingSetting = errors.New("missing setting")
	// errInvalidThreshold is returned when the confidence threshold is out of range.
	errInvalidThreshold = errors.New("confidence threshold must be within (0, 100]")
	// errInvalidGPIOLine is returned for malformed GPIO line bindings.
	errInvalidGPIOLine = errors.New("invalid gpio line")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold broker and database credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills in defaults.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	// Set default timeout if not specified.
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	// Set default state file if not specified.
	if settings.StateFile == "" {
		settings.StateFile = DefaultStateFilename
	}

	if err := validateStorage(&settings.Storage); err != nil {
		return err
	}

	if err := validateClassifier(&settings.Classifier); err != nil {
		return err
	}

	if err := validateMQTT(&settings.MQTT); err != nil {
		return err
	}

	return validateGPIO(&settings.GPIO)
}

// validateStorage checks the storage section.
func validateStorage(storage *StorageConfig) error {
	storage.Backend = strings.ToLower(strings.TrimSpace(storage.Backend))
	if storage.Backend == "" {
		storage.Backend = StorageFile
	}

	switch storage.Backend {
	case StorageMemory, StorageFile:
		return nil
	case StorageRedis:
		if storage.RedisAddress == "" {
			return fmt.Errorf("%w: storage.redis_addr", errMissingSetting)
		}

		return nil
	case StoragePostgres:
		if storage.PostgresDSN == "" {
			return fmt.Errorf("%w: storage.postgres_dsn", errMissingSetting)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownStorage, storage.Backend)
	}
}

// validateClassifier checks the classifier section.
func validateClassifier(classifier *ClassifierConfig) error {
	classifier.Backend = strings.ToLower(strings.TrimSpace(classifier.Backend))
	if classifier.Backend == "" {
		classifier.Backend = ClassifierFake
	}

	if classifier.ConfidenceThreshold == 0 {
		classifier.ConfidenceThreshold = DefaultConfidenceThreshold
	}

	if classifier.ConfidenceThreshold < 0 || classifier.ConfidenceThreshold > 100 {
		return errInvalidThreshold
	}

	switch classifier.Backend {
	case ClassifierFake:
		return nil
	case ClassifierHTTP:
		if classifier.Endpoint == "" {
			return fmt.Errorf("%w: classifier.endpoint", errMissingSetting)
		}

		if _, err := url.ParseRequestURI(classifier.Endpoint); err != nil {
			return fmt.Errorf("invalid classifier endpoint: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownClassifier, classifier.Backend)
	}
}

// validateMQTT fills MQTT defaults when the bridge is enabled.
func validateMQTT(mqtt *MQTTConfig) error {
	if mqtt.Broker == "" {
		return nil
	}

	if _, err := url.Parse(mqtt.Broker); err != nil {
		return fmt.Errorf("invalid mqtt broker: %w", err)
	}

	if mqtt.ClientID == "" {
		mqtt.ClientID = DefaultMQTTClientID
	}

	if mqtt.TopicPrefix == "" {
		mqtt.TopicPrefix = DefaultMQTTTopicPrefix
	}

	mqtt.TopicPrefix = strings.TrimSuffix(mqtt.TopicPrefix, "/")

	return nil
}

// validateGPIO fills GPIO defaults and checks line bindings.
func validateGPIO(gpio *GPIOConfig) error {
	if len(gpio.Lines) == 0 {
		return nil
	}

	if gpio.Chip == "" {
		gpio.Chip = DefaultGPIOChip
	}

	if gpio.PollInterval <= 0 {
		gpio.PollInterval = DefaultGPIOPollInterval
	}

	seen := make(map[int]struct{}, len(gpio.Lines))

	for _, line := range gpio.Lines {
		if line.Offset < 0 || line.Sensor == "" || line.Type == "" {
			return fmt.Errorf("%w: offset %d", errInvalidGPIOLine, line.Offset)
		}

		if _, ok := seen[line.Offset]; ok {
			return fmt.Errorf("%w: duplicate offset %d", errInvalidGPIOLine, line.Offset)
		}

		seen[line.Offset] = struct{}{}
	}

	return nil
}
