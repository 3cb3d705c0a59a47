// Package throttle limits repeated failed logins per user and per client
// address using fixed-window counters in Redis.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrThrottled is returned when the failure budget for the window is spent.
	ErrThrottled = errors.New("too many failed login attempts")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("throttle store unavailable")
)

// Config configures the limiter.
type Config struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr        string        `mapstructure:"addr" yaml:"addr" validate:"required_if=Enabled true"`
	Password    string        `mapstructure:"password" yaml:"password,omitempty"`
	DB          int           `mapstructure:"db" yaml:"db" validate:"gte=0"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"gte=0"`
	Window      time.Duration `mapstructure:"window" yaml:"window"`
	PerIP       bool          `mapstructure:"per_ip" yaml:"per_ip"`
	KeyPrefix   string        `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// DefaultConfig returns a disabled limiter with sensible budgets.
func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:6379",
		MaxAttempts: 5,
		Window:      15 * time.Minute,
		PerIP:       true,
		KeyPrefix:   "labgate:throttle",
	}
}

// Limiter is consulted before and after each authentication attempt.
type Limiter interface {
	Check(ctx context.Context, namespace, username, ip string) error
	Fail(ctx context.Context, namespace, username, ip string) error
	Reset(ctx context.Context, namespace, username, ip string) error
}

// Disabled never throttles.
type Disabled struct{}

func (Disabled) Check(context.Context, string, string, string) error { return nil }
func (Disabled) Fail(context.Context, string, string, string) error  { return nil }
func (Disabled) Reset(context.Context, string, string, string) error { return nil }

// RedisLimiter counts failures in Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	config Config
}

// New wraps an existing client.
func New(client redis.UniversalClient, cfg Config) *RedisLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &RedisLimiter{client: client, config: cfg}
}

// Open returns the limiter described by cfg, dialling Redis when enabled.
// The returned close function is never nil.
func Open(ctx context.Context, cfg Config) (Limiter, func() error, error) {
	if !cfg.Enabled {
		return Disabled{}, func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return New(client, cfg), client.Close, nil
}

// Check returns ErrThrottled when the user, or the address if per-IP
// throttling is on, has exhausted its budget.
func (l *RedisLimiter) Check(ctx context.Context, namespace, username, ip string) error {
	for _, key := range l.keys(namespace, username, ip) {
		count, err := l.client.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if count >= int64(l.config.MaxAttempts) {
			return ErrThrottled
		}
	}
	return nil
}

// Fail records one failed attempt.
func (l *RedisLimiter) Fail(ctx context.Context, namespace, username, ip string) error {
	for _, key := range l.keys(namespace, username, ip) {
		count, err := l.client.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		// fixed window: the first failure opens it
		if count == 1 {
			if err := l.client.Expire(ctx, key, l.config.Window).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
	}
	return nil
}

// Reset clears the user's counter after a successful login. The address
// counter is left to expire with its window.
func (l *RedisLimiter) Reset(ctx context.Context, namespace, username, _ string) error {
	if err := l.client.Del(ctx, l.userKey(namespace, username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Attempts returns the failure count recorded for a user.
func (l *RedisLimiter) Attempts(ctx context.Context, namespace, username string) (int, error) {
	count, err := l.client.Get(ctx, l.userKey(namespace, username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(count), nil
}

func (l *RedisLimiter) keys(namespace, username, ip string) []string {
	keys := []string{l.userKey(namespace, username)}
	if l.config.PerIP && ip != "" {
		keys = append(keys, l.config.KeyPrefix+":ip:"+ip)
	}
	return keys
}

func (l *RedisLimiter) userKey(namespace, username string) string {
	return l.config.KeyPrefix + ":user:" + namespace + ":" + strings.ToLower(username)
}
