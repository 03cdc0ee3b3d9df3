package server

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Option alters the server configuration during NewServer
type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// config defines fields used for configuring Server instance
type config struct {
	httpServer    *http.Server
	public        map[string]http.Handler
	protected     map[string]http.Handler
	afterShutdown []func()
}

func (c *config) eachHandler(f func(pattern string, h http.Handler) http.Handler) {
	for pattern, h := range c.public {
		c.public[pattern] = f(pattern, h)
	}
	for pattern, h := range c.protected {
		c.protected[pattern] = f(pattern, h)
	}
}

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port uint16 `env:"PORT" envDefault:"9000"`
}

// WithEnvConfig enables processing exported EnvConfig struct to act as a source of config parameters for http.Server
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		c.httpServer.Addr = cfg.Host + ":" + strconv.FormatUint(uint64(cfg.Port), 10)
	})
}

// ReadTimeout sets read timeout for http.Server
func ReadTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.httpServer.ReadTimeout = d
	})
}

// RegisterAfterShutdown registers a function to call after http.Server shutdown
// f will not be called in a separate goroutine
func RegisterAfterShutdown(f func()) Option {
	return optionFunc(func(c *config) {
		c.afterShutdown = append(c.afterShutdown, f)
	})
}

// RateLimit wraps every endpoint in a shared token-bucket limiter
func RateLimit(rps float64, burst int) Option {
	return optionFunc(func(c *config) {
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		c.eachHandler(func(_ string, h http.Handler) http.Handler {
			return rateLimit(h, limiter)
		})
	})
}

// TimeoutHandler wraps each handler in http.TimeoutHandler with provided duration and message
func TimeoutHandler(d time.Duration, msg string) Option {
	return optionFunc(func(c *config) {
		c.eachHandler(func(_ string, h http.Handler) http.Handler {
			return http.TimeoutHandler(h, d, msg)
		})
	})
}

// applyAuth wraps every protected handler with the session-resolving middleware
func applyAuth(am *authMiddleware) Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.protected {
			c.protected[pattern] = am.wrap(h)
		}
	})
}

// applyEnforcePostJson wraps every handler with the enforcePostJson middleware
func applyEnforcePostJson() Option {
	return optionFunc(func(c *config) {
		c.eachHandler(func(_ string, h http.Handler) http.Handler {
			return enforcePostJson(h)
		})
	})
}

// applyLog wraps every handler with the request-id logging middleware
func applyLog(logger *zap.Logger) Option {
	return optionFunc(func(c *config) {
		c.eachHandler(func(_ string, h http.Handler) http.Handler {
			return log(h, logger)
		})
	})
}

// registerHandlers collects public and protected handlers into a fresh
// http.ServeMux and installs it on the http.Server. Must run last.
func registerHandlers() Option {
	return optionFunc(func(c *config) {
		mux := http.NewServeMux()
		for pattern, h := range c.public {
			mux.Handle(pattern, h)
		}
		for pattern, h := range c.protected {
			mux.Handle(pattern, h)
		}
		c.httpServer.Handler = mux
	})
}
