// Package ratelimit throttles API clients with a token bucket per client IP.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	// RequestsPerSecond is the sustained rate allowed per client.
	RequestsPerSecond float64
	// Burst is the number of requests a client may make at once.
	Burst int
	// IdleTTL evicts clients that have not been seen for this long.
	IdleTTL time.Duration
	// TrustProxy reads the client address from X-Forwarded-For.
	TrustProxy bool

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerSecond: 10,
		Burst:             20,
		IdleTTL:           3 * time.Minute,
	}
}

type client struct {
	limiter *rate.Limiter
	seen    time.Time
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	config  *Config
	clock   Clock
	mu      sync.Mutex
	clients map[string]*client
}

func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Limiter{
		config:  cfg,
		clock:   clock,
		clients: make(map[string]*client),
	}
}

// Allow consumes a token for key and reports whether the request may proceed.
func (l *Limiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst)}
		l.clients[key] = c
	}
	c.seen = now
	l.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// Sweep drops clients idle for longer than IdleTTL and returns how many were
// removed.
func (l *Limiter) Sweep() int {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, c := range l.clients {
		if now.Sub(c.seen) > l.config.IdleTTL {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// Middleware rejects requests from clients over their rate with 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := GetClientIP(r, l.config.TrustProxy)
		if !l.Allow(ip) {
			log.Ctx(r.Context()).Warn().
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("path", r.URL.Path).
				Msg("API rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClientIP extracts the client IP from a request.
// When trustProxy is true, uses the rightmost IP from X-Forwarded-For (added by your proxy).
// When trustProxy is false, ignores X-Forwarded-For entirely (prevents spoofing).
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			return strings.TrimSpace(parts[len(parts)-1])
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

var privateNetworks []*net.IPNet

func init() {
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

// isPrivateIP handles both IPv4 and IPv4-mapped IPv6 addresses.
func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// SanitizeIdentifier masks an email address or phone number for logging.
func SanitizeIdentifier(identifier string) string {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if at := strings.LastIndex(identifier, "@"); at >= 0 {
		local, domain := identifier[:at], identifier[at+1:]
		if len(local) > 2 {
			return local[:2] + "***@" + domain
		}
		return "***@" + domain
	}
	if len(identifier) >= 4 {
		return "***" + identifier[len(identifier)-4:]
	}
	return "***"
}
