package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// KafkaConfig holds broker settings. An empty broker list disables event publishing.
type KafkaConfig struct {
	Brokers         []string
	GroupPrefix     string
	EventsTopic     string
	MembershipTopic string
}

// RedisConfig holds settings for the distributed home lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// CalendarConfig holds the availability window settings.
type CalendarConfig struct {
	HorizonDays int
}

// SettlementConfig holds token backend settings.
type SettlementConfig struct {
	OperatorID    string
	MembershipTTL time.Duration
}

// TracingConfig holds OTLP exporter settings.
type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

// ServiceConfig holds all configuration for the stay service.
type ServiceConfig struct {
	Port          string
	AppEnv        string
	StorageDriver string
	LockBackend   string
	DBConfig      DatabaseConfig
	JWTConfig     JWTConfig
	KafkaConfig   KafkaConfig
	RedisConfig   RedisConfig
	Calendar      CalendarConfig
	Settlement    SettlementConfig
	Tracing       TracingConfig
}

const envPrefix = "STAY"

// Load reads configuration from STAY_-prefixed environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_port", "8080")
	v.SetDefault("app_env", "development")
	v.SetDefault("storage_driver", StorageMemory)
	v.SetDefault("lock_backend", LockLocal)

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_name", "stay")
	v.SetDefault("db_sslmode", "disable")

	v.SetDefault("jwt_secret", "change-me")
	v.SetDefault("jwt_access_ttl", 15*time.Minute)
	v.SetDefault("jwt_refresh_ttl", 7*24*time.Hour)

	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_group_prefix", "stay-")
	v.SetDefault("kafka_events_topic", "stay.events")
	v.SetDefault("kafka_membership_topic", "membership.events")

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_lock_ttl", 30*time.Second)

	v.SetDefault("calendar_horizon_days", 100)

	v.SetDefault("settlement_operator_id", "00000000-0000-0000-0000-00000000beef")
	v.SetDefault("settlement_membership_ttl", 365*24*time.Hour)

	v.SetDefault("tracing_enabled", false)
	v.SetDefault("tracing_endpoint", "localhost:4317")
}

func fromViper(v *viper.Viper) (*ServiceConfig, error) {
	cfg := &ServiceConfig{
		Port:          ":" + strings.TrimPrefix(v.GetString("service_port"), ":"),
		AppEnv:        v.GetString("app_env"),
		StorageDriver: v.GetString("storage_driver"),
		LockBackend:   v.GetString("lock_backend"),
		DBConfig: DatabaseConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			DBName:   v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
		},
		JWTConfig: JWTConfig{
			Secret:     v.GetString("jwt_secret"),
			AccessTTL:  v.GetDuration("jwt_access_ttl"),
			RefreshTTL: v.GetDuration("jwt_refresh_ttl"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:         splitList(v.GetString("kafka_brokers")),
			GroupPrefix:     v.GetString("kafka_group_prefix"),
			EventsTopic:     v.GetString("kafka_events_topic"),
			MembershipTopic: v.GetString("kafka_membership_topic"),
		},
		RedisConfig: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
			LockTTL:  v.GetDuration("redis_lock_ttl"),
		},
		Calendar: CalendarConfig{
			HorizonDays: v.GetInt("calendar_horizon_days"),
		},
		Settlement: SettlementConfig{
			OperatorID:    v.GetString("settlement_operator_id"),
			MembershipTTL: v.GetDuration("settlement_membership_ttl"),
		},
		Tracing: TracingConfig{
			Enabled:  v.GetBool("tracing_enabled"),
			Endpoint: v.GetString("tracing_endpoint"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServiceConfig) validate() error {
	switch c.StorageDriver {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	switch c.LockBackend {
	case LockLocal, LockRedis:
	default:
		return fmt.Errorf("unknown lock backend %q", c.LockBackend)
	}
	if c.Calendar.HorizonDays < 1 {
		return fmt.Errorf("calendar horizon must be at least one day, got %d", c.Calendar.HorizonDays)
	}
	if c.AppEnv != "development" && c.JWTConfig.Secret == "change-me" {
		return fmt.Errorf("STAY_JWT_SECRET must be set outside development")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
