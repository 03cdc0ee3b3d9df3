package server

import (
	"io/ioutil"
	"net/http"

	"github.com/valyala/fastjson"
)

// registerPushToken handles HTTP requests on "/notifications/register-token".
// Tokens form a set per user: re-registering is a no-op.
func (h *handler) registerPushToken(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.notificationsPool.Get()
	defer h.parsers.notificationsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	tokenValue := v.Get("token")
	if tokenValue == nil || tokenValue.Type() != fastjson.TypeString {
		h.badRequest(w, `Field "token" must be a string`)
		return
	}
	token := string(tokenValue.GetStringBytes())
	if len(token) == 0 {
		h.badRequest(w, `Field "token" must have non-zero length`)
		return
	}

	if err := h.store.SavePushToken(r.Context(), u.ID, token); err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, successResponse{Success: true})
}

// removePushToken handles HTTP requests on "/notifications/remove-token"
func (h *handler) removePushToken(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.notificationsPool.Get()
	defer h.parsers.notificationsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	tokenValue := v.Get("token")
	if tokenValue == nil || tokenValue.Type() != fastjson.TypeString {
		h.badRequest(w, `Field "token" must be a string`)
		return
	}
	token := string(tokenValue.GetStringBytes())
	if len(token) == 0 {
		h.badRequest(w, `Field "token" must have non-zero length`)
		return
	}

	if err := h.store.RemovePushToken(r.Context(), u.ID, token); err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, successResponse{Success: true})
}
