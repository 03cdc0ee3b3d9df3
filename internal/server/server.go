package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

// Server defines fields used in HTTP processing
type Server struct {
	logger        *zap.SugaredLogger
	httpServer    *http.Server
	afterShutdown []func()
	h             handler
}

// NewServer wires the request handlers for every operation, groups them into
// public and session-protected sets and applies the provided options on top
// of the defaults (JSON enforcement, request logging, auth resolution)
func NewServer(logger *zap.SugaredLogger, store Store, pusher Notifier, opts ...Option) (*Server, error) {
	srv := &Server{
		logger: logger,
		h: handler{
			logger: logger,
			store:  store,
			pusher: pusher,
			parsers: parsers{
				authPool:          fastjson.ParserPool{},
				roomsPool:         fastjson.ParserPool{},
				messagesPool:      fastjson.ParserPool{},
				notificationsPool: fastjson.ParserPool{},
			},
		},
	}

	c := &config{
		httpServer: &http.Server{Addr: "0.0.0.0:9000"},
		public: map[string]http.Handler{
			"/auth/signup":          http.HandlerFunc(srv.h.signup),
			"/auth/login":           http.HandlerFunc(srv.h.login),
			"/auth/forgot-password": http.HandlerFunc(srv.h.forgotPassword),
			"/auth/reset-password":  http.HandlerFunc(srv.h.resetPassword),
		},
		protected: map[string]http.Handler{
			"/auth/logout":                  http.HandlerFunc(srv.h.logout),
			"/auth/me":                      http.HandlerFunc(srv.h.me),
			"/auth/delete-account":          http.HandlerFunc(srv.h.deleteAccount),
			"/rooms/create":                 http.HandlerFunc(srv.h.createRoom),
			"/rooms/join":                   http.HandlerFunc(srv.h.joinRoom),
			"/rooms/list":                   http.HandlerFunc(srv.h.listRooms),
			"/rooms/delete":                 http.HandlerFunc(srv.h.deleteRoom),
			"/rooms/members":                http.HandlerFunc(srv.h.roomMembers),
			"/rooms/remove-user":            http.HandlerFunc(srv.h.removeUser),
			"/rooms/leave":                  http.HandlerFunc(srv.h.leaveRoom),
			"/messages/send":                http.HandlerFunc(srv.h.sendMessage),
			"/messages/list":                http.HandlerFunc(srv.h.listMessages),
			"/notifications/register-token": http.HandlerFunc(srv.h.registerPushToken),
			"/notifications/remove-token":   http.HandlerFunc(srv.h.removePushToken),
		},
	}

	am := newAuthMiddleware(logger, store)
	opts = append(opts,
		applyAuth(am),
		applyEnforcePostJson(),
		applyLog(logger.Desugar()),
		registerHandlers(),
	)
	for _, opt := range opts {
		opt.apply(c)
	}

	srv.httpServer = c.httpServer
	srv.afterShutdown = c.afterShutdown

	return srv, nil
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		s.logger.Info("Shutting down HTTP server")

		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	for _, f := range s.afterShutdown {
		f()
	}

	return nil
}
