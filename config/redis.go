package config

import (
	"crypto/tls"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisOptions struct {
	// The network type, either tcp or unix.
	// Default is tcp.
	Network string `json:"network"`

	Host string `json:"host"`
	Port int    `json:"port"`

	Password string `json:"password"`
	DB       int    `json:"db"`

	// Namespace prefixes every key so several nodes can share one server.
	Namespace string `json:"namespace"`

	// OpTimeout bounds one logical ledger operation, in milliseconds.
	OpTimeout int `json:"opTimeout"`
	// MaxRetries is how many optimistic commits are attempted before giving up busy.
	MaxRetries int `json:"maxRetries"`
	PoolSize   int `json:"poolSize"`

	TLS *TLSClientOptions `json:"tls"`
}

func (ro *RedisOptions) Addr() string {
	return ro.Host + ":" + strconv.Itoa(ro.Port)
}

func (ro *RedisOptions) OpTimeoutDuration() time.Duration {
	return time.Duration(ro.OpTimeout) * time.Millisecond
}

func (ro *RedisOptions) ToRedisOptions() *redis.Options {
	var tlsConfig *tls.Config

	if ro.TLS != nil {
		tlsConfig = ro.TLS.ToTLSConfig()
	}

	return &redis.Options{
		Network:   ro.Network,
		Addr:      ro.Addr(),
		Password:  ro.Password,
		DB:        ro.DB,
		PoolSize:  ro.PoolSize,
		TLSConfig: tlsConfig,
	}
}
