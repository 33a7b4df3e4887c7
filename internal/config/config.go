package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "helmsync.cfg.json"

// ServerConfig holds the websocket/HTTP listener settings.
type ServerConfig struct {
	Listen         string        `json:"listen" mapstructure:"listen"`
	AllowedOrigins []string      `json:"allowedOrigins" mapstructure:"allowedOrigins"`
	ReadLimit      int64         `json:"readLimit" mapstructure:"readLimit"`
	OutboxSize     int           `json:"outboxSize" mapstructure:"outboxSize"`
	RateLimit      float64       `json:"rateLimit" mapstructure:"rateLimit"`
	RateBurst      int           `json:"rateBurst" mapstructure:"rateBurst"`
	PingInterval   time.Duration `json:"pingInterval" mapstructure:"pingInterval"`
	PongWait       time.Duration `json:"pongWait" mapstructure:"pongWait"`
	WriteWait      time.Duration `json:"writeWait" mapstructure:"writeWait"`
	UserHeader     string        `json:"userHeader" mapstructure:"userHeader"`
	RolesHeader    string        `json:"rolesHeader" mapstructure:"rolesHeader"`
}

// SimConfig holds client physics loop settings.
type SimConfig struct {
	Module             string        `json:"module" mapstructure:"module"`
	FrameInterval      time.Duration `json:"frameInterval" mapstructure:"frameInterval"`
	MaxFrameDelta      time.Duration `json:"maxFrameDelta" mapstructure:"maxFrameDelta"`
	PosePushInterval   time.Duration `json:"posePushInterval" mapstructure:"posePushInterval"`
	FuelAlarmThreshold float64       `json:"fuelAlarmThreshold" mapstructure:"fuelAlarmThreshold"`
}

// RulesConfig holds authority rules.
type RulesConfig struct {
	Strict              bool          `json:"strict" mapstructure:"strict"`
	MinPlayerRank       int           `json:"minPlayerRank" mapstructure:"minPlayerRank"`
	SpectatorProximity  float64       `json:"spectatorProximity" mapstructure:"spectatorProximity"`
	MooredSpeed         float64       `json:"mooredSpeed" mapstructure:"mooredSpeed"`
	DepartureThrottle   float64       `json:"departureThrottle" mapstructure:"departureThrottle"`
	StaleAfter          time.Duration `json:"staleAfter" mapstructure:"staleAfter"`
	DerivedSpeedMin     float64       `json:"derivedSpeedMin" mapstructure:"derivedSpeedMin"`
	ReportedSpeedMax    float64       `json:"reportedSpeedMax" mapstructure:"reportedSpeedMax"`
	PersistDebounce     time.Duration `json:"persistDebounce" mapstructure:"persistDebounce"`
	DamageThrottleLimit float64       `json:"damageThrottleLimit" mapstructure:"damageThrottleLimit"`
	StartingCredits     int64         `json:"startingCredits" mapstructure:"startingCredits"`
}

// MissionConfig holds tracker settings.
type MissionConfig struct {
	PickupRadius   float64       `json:"pickupRadius" mapstructure:"pickupRadius"`
	DeliveryRadius float64       `json:"deliveryRadius" mapstructure:"deliveryRadius"`
	SweepInterval  time.Duration `json:"sweepInterval" mapstructure:"sweepInterval"`
	Catalog        string        `json:"catalog" mapstructure:"catalog"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslmode" mapstructure:"sslmode"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// InfluxConfig holds InfluxDB telemetry settings
type InfluxConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// GraylogConfig holds the GELF sink settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// JournalConfig holds the admin action journal settings
type JournalConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Dir     string `json:"dir" mapstructure:"dir"`
}

// ClientConfig holds headless participant settings
type ClientConfig struct {
	ServerURL    string        `json:"serverUrl" mapstructure:"serverUrl"`
	APIURL       string        `json:"apiUrl" mapstructure:"apiUrl"`
	UserID       string        `json:"userId" mapstructure:"userId"`
	Roles        string        `json:"roles" mapstructure:"roles"`
	Space        string        `json:"space" mapstructure:"space"`
	Codec        string        `json:"codec" mapstructure:"codec"`
	ReconnectMin time.Duration `json:"reconnectMin" mapstructure:"reconnectMin"`
	ReconnectMax time.Duration `json:"reconnectMax" mapstructure:"reconnectMax"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers every default value. Load calls it; tools that run
// without a config file call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./helmlogs")
	viper.SetDefault("logKeep", 20)

	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.allowedOrigins", []string{})
	viper.SetDefault("server.readLimit", 64*1024)
	viper.SetDefault("server.outboxSize", 256)
	viper.SetDefault("server.rateLimit", 40.0)
	viper.SetDefault("server.rateBurst", 80)
	viper.SetDefault("server.pingInterval", "30s")
	viper.SetDefault("server.pongWait", "60s")
	viper.SetDefault("server.writeWait", "10s")
	viper.SetDefault("server.userHeader", "X-User-Id")
	viper.SetDefault("server.rolesHeader", "X-User-Roles")

	viper.SetDefault("sim.module", "kinematic")
	viper.SetDefault("sim.frameInterval", "16ms")
	viper.SetDefault("sim.maxFrameDelta", "250ms")
	viper.SetDefault("sim.posePushInterval", "200ms")
	viper.SetDefault("sim.fuelAlarmThreshold", 0.10)

	viper.SetDefault("rules.strict", true)
	viper.SetDefault("rules.minPlayerRank", 1)
	viper.SetDefault("rules.spectatorProximity", 1500.0)
	viper.SetDefault("rules.mooredSpeed", 0.2)
	viper.SetDefault("rules.departureThrottle", 0.01)
	viper.SetDefault("rules.staleAfter", "100ms")
	viper.SetDefault("rules.derivedSpeedMin", 0.05)
	viper.SetDefault("rules.reportedSpeedMax", 0.01)
	viper.SetDefault("rules.persistDebounce", "2s")
	viper.SetDefault("rules.damageThrottleLimit", 0.5)
	viper.SetDefault("rules.startingCredits", 100)

	viper.SetDefault("mission.pickupRadius", 220.0)
	viper.SetDefault("mission.deliveryRadius", 260.0)
	viper.SetDefault("mission.sweepInterval", "5s")
	viper.SetDefault("mission.catalog", "./world.yaml")

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./helmsync.db")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "helmsync")
	viper.SetDefault("storage.postgres.sslmode", "disable")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "helmsync")
	viper.SetDefault("influx.bucket", "vessels")
	viper.SetDefault("influx.backupDir", "./helmlogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "helmsync")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("journal.enabled", true)
	viper.SetDefault("journal.dir", "./helmjournal")

	viper.SetDefault("client.serverUrl", "ws://localhost:8080/ws")
	viper.SetDefault("client.apiUrl", "http://localhost:8080")
	viper.SetDefault("client.userId", "")
	viper.SetDefault("client.roles", "player")
	viper.SetDefault("client.space", "default")
	viper.SetDefault("client.codec", "json")
	viper.SetDefault("client.reconnectMin", "1s")
	viper.SetDefault("client.reconnectMax", "30s")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetServerConfig returns the listener settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Listen:         viper.GetString("server.listen"),
		AllowedOrigins: viper.GetStringSlice("server.allowedOrigins"),
		ReadLimit:      viper.GetInt64("server.readLimit"),
		OutboxSize:     viper.GetInt("server.outboxSize"),
		RateLimit:      viper.GetFloat64("server.rateLimit"),
		RateBurst:      viper.GetInt("server.rateBurst"),
		PingInterval:   viper.GetDuration("server.pingInterval"),
		PongWait:       viper.GetDuration("server.pongWait"),
		WriteWait:      viper.GetDuration("server.writeWait"),
		UserHeader:     viper.GetString("server.userHeader"),
		RolesHeader:    viper.GetString("server.rolesHeader"),
	}
}

// GetSimConfig returns the client physics loop settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		Module:             viper.GetString("sim.module"),
		FrameInterval:      viper.GetDuration("sim.frameInterval"),
		MaxFrameDelta:      viper.GetDuration("sim.maxFrameDelta"),
		PosePushInterval:   viper.GetDuration("sim.posePushInterval"),
		FuelAlarmThreshold: viper.GetFloat64("sim.fuelAlarmThreshold"),
	}
}

// GetRulesConfig returns the authority rules.
func GetRulesConfig() RulesConfig {
	return RulesConfig{
		Strict:              viper.GetBool("rules.strict"),
		MinPlayerRank:       viper.GetInt("rules.minPlayerRank"),
		SpectatorProximity:  viper.GetFloat64("rules.spectatorProximity"),
		MooredSpeed:         viper.GetFloat64("rules.mooredSpeed"),
		DepartureThrottle:   viper.GetFloat64("rules.departureThrottle"),
		StaleAfter:          viper.GetDuration("rules.staleAfter"),
		DerivedSpeedMin:     viper.GetFloat64("rules.derivedSpeedMin"),
		ReportedSpeedMax:    viper.GetFloat64("rules.reportedSpeedMax"),
		PersistDebounce:     viper.GetDuration("rules.persistDebounce"),
		DamageThrottleLimit: viper.GetFloat64("rules.damageThrottleLimit"),
		StartingCredits:     viper.GetInt64("rules.startingCredits"),
	}
}

// GetMissionConfig returns the mission tracker settings.
func GetMissionConfig() MissionConfig {
	return MissionConfig{
		PickupRadius:   viper.GetFloat64("mission.pickupRadius"),
		DeliveryRadius: viper.GetFloat64("mission.deliveryRadius"),
		SweepInterval:  viper.GetDuration("mission.sweepInterval"),
		Catalog:        viper.GetString("mission.catalog"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
			SSLMode:  viper.GetString("storage.postgres.sslmode"),
		},
	}
}

// GetInfluxConfig returns the telemetry settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetJournalConfig returns the admin journal settings.
func GetJournalConfig() JournalConfig {
	return JournalConfig{
		Enabled: viper.GetBool("journal.enabled"),
		Dir:     viper.GetString("journal.dir"),
	}
}

// GetClientConfig returns the headless participant settings.
func GetClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL:    viper.GetString("client.serverUrl"),
		APIURL:       viper.GetString("client.apiUrl"),
		UserID:       viper.GetString("client.userId"),
		Roles:        viper.GetString("client.roles"),
		Space:        viper.GetString("client.space"),
		Codec:        viper.GetString("client.codec"),
		ReconnectMin: viper.GetDuration("client.reconnectMin"),
		ReconnectMax: viper.GetDuration("client.reconnectMax"),
	}
}
