package global

import (
	"time"

	"BProject/tools"
)

// AppConfig is the hub server's process configuration, read once at startup.
type AppConfig struct {
	NodeID      string        // hub node identity, participates in fanout envelopes
	NodeNum     int64         // snowflake node number
	Port        int           // HTTP/WebSocket listen port
	Debug       bool          // keeps gin in debug mode when set
	MemberTTL   time.Duration // stale-member eviction threshold
	SweepEvery  time.Duration // stale-member sweep interval
	RedisAddr   string        // empty disables the Redis fanout/cache
	RedisPass   string
	RedisDB     int
	NatsServers string // comma separated; empty disables the NATS relay
	PostgresURL string // empty disables durable snapshots
}

// LoadAppConfig reads configuration from the environment.
func LoadAppConfig() AppConfig {
	return AppConfig{
		NodeID:      tools.GetEnv("NODE_ID", "hub-1"),
		NodeNum:     int64(tools.GetEnvInt("NODE_NUM", 1)),
		Port:        tools.GetEnvInt("PORT", 8081),
		Debug:       tools.GetEnvBool("DEBUG", false),
		MemberTTL:   tools.GetEnvDuration("MEMBER_TTL", time.Minute),
		SweepEvery:  tools.GetEnvDuration("MEMBER_SWEEP_EVERY", 10*time.Second),
		RedisAddr:   tools.GetEnv("REDIS_ADDR", ""),
		RedisPass:   tools.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:     tools.GetEnvInt("REDIS_DB", 0),
		NatsServers: tools.GetEnv("NATS_SERVERS", ""),
		PostgresURL: tools.GetEnv("DATABASE_URL", ""),
	}
}
