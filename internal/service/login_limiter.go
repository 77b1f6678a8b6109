package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter limita la frecuencia de intentos de login por clave.
type LoginLimiter interface {
	Allow(key string) bool
}

const loginLimiterKeyPrefix = "auth:login:rl:"

// loginLimits normaliza la ventana y el maximo compartidos por ambos limiters.
func loginLimits(window time.Duration, max int) (time.Duration, int) {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return window, max
}

func loginLimiterKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

type memoryLoginLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	now    func() time.Time

	// lastSweep marca la ultima purga de claves vencidas.
	lastSweep time.Time
}

// NewMemoryLoginLimiter crea un rate limiter en memoria.
func NewMemoryLoginLimiter(window time.Duration, max int) LoginLimiter {
	window, max = loginLimits(window, max)
	return &memoryLoginLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *memoryLoginLimiter) Allow(key string) bool {
	key = loginLimiterKey(key)
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	kept := recentHits(l.hits[key], cutoff)
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// sweep borra las claves sin intentos dentro de la ventana.
func (l *memoryLoginLimiter) sweep(cutoff time.Time) {
	for key, entries := range l.hits {
		kept := recentHits(entries, cutoff)
		if len(kept) == 0 {
			delete(l.hits, key)
			continue
		}
		l.hits[key] = kept
	}
}

func recentHits(entries []time.Time, cutoff time.Time) []time.Time {
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

const redisLoginAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisLoginLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
}

// NewRedisLoginLimiter comparte el conteo entre instancias usando Redis.
func NewRedisLoginLimiter(client *redis.Client, window time.Duration, max int) LoginLimiter {
	if client == nil {
		return nil
	}
	window, max = loginLimits(window, max)
	return &redisLoginLimiter{client: client, window: window, max: max}
}

// Allow deja pasar la solicitud si Redis falla.
func (l *redisLoginLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := loginLimiterKey(key)
	if normalizedKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// EXPIRE trabaja en segundos; una ventana menor a 1s se redondea a 1s.
	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	count, err := l.client.Eval(ctx, redisLoginAllowScript, []string{loginLimiterKeyPrefix + normalizedKey}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}
