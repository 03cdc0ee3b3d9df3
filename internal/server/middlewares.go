package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"mime"
	"net/http"

	"github.com/ShimmerHandmade/chattown-app-release/internal/storage"
	"github.com/ShimmerHandmade/chattown-app-release/internal/storage/zapadapter"
	"github.com/rs/xid"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SessionHeader carries the opaque session token on authenticated operations
const SessionHeader = "X-Session-Token"

// enforcePostJson is a middleware pre-processing each HTTP request
// it checks for POST method, application/json Content-Type header and valid json body
// it also sets blank Content-Type header to application/json
func enforcePostJson(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			w.Header().Set("Allow", "POST")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		// check "Content-Type" header
		contentType := r.Header.Get("Content-Type")
		if contentType != "" {
			mt, _, err := mime.ParseMediaType(contentType)
			if err != nil {
				http.Error(w, "Malformed Content-Type header", http.StatusBadRequest)
				return
			}

			if mt != "application/json" {
				http.Error(w, "Content-Type header must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		} else {
			r.Header.Set("Content-Type", "application/json")
		}

		// check if provided request body is valid JSON
		var bodyBuf bytes.Buffer
		bodyReader := io.TeeReader(r.Body, &bodyBuf)
		body, err := ioutil.ReadAll(bodyReader)
		if err != nil {
			http.Error(w, "Can not read request body", http.StatusBadRequest)
			return
		}

		if len(body) == 0 {
			http.Error(w, "No body provided", http.StatusBadRequest)
			return
		}

		if err := fastjson.ValidateBytes(body); err != nil {
			http.Error(w, "Malformed JSON", http.StatusBadRequest)
			return
		}

		r.Body = ioutil.NopCloser(&bodyBuf)

		next.ServeHTTP(w, r)
	})
}

func log(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := xid.New().String()

		ctx := zapadapter.NewContextWithID(r.Context(), id)
		rwID := r.WithContext(ctx)

		logger.Info("incoming http request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("uri", r.URL.RequestURI()),
			zap.String("ip", r.RemoteAddr),
		)

		next.ServeHTTP(w, rwID)
	})
}

// sessionResolver decouples the auth middleware from the full Store surface
type sessionResolver interface {
	UserBySession(ctx context.Context, token string) (storage.User, error)
}

type authMiddleware struct {
	logger   *zap.SugaredLogger
	resolver sessionResolver
}

func newAuthMiddleware(logger *zap.SugaredLogger, resolver sessionResolver) *authMiddleware {
	return &authMiddleware{logger: logger, resolver: resolver}
}

// wrap resolves the session header to a user and injects it into request
// context. Each request authenticates independently; no cross-request state.
func (am *authMiddleware) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(SessionHeader)
		if token == "" {
			writeError(am.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
			return
		}

		u, err := am.resolver.UserBySession(r.Context(), token)
		if err != nil {
			if errors.Is(err, storage.ErrSessionNotExist) {
				writeError(am.logger, w, http.StatusUnauthorized, codeUnauthorized, "Invalid session token")
				return
			}
			am.logger.Error(err)
			writeError(am.logger, w, http.StatusInternalServerError, codeInternal, "Something went wrong")
			return
		}

		next.ServeHTTP(w, r.WithContext(newContextWithUser(r.Context(), u, token)))
	})
}

// rateLimit applies a process-wide token bucket across all endpoints
func rateLimit(next http.Handler, limiter *rate.Limiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
