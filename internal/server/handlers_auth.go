package server

import (
	"errors"
	"io/ioutil"
	"net/http"
	"net/mail"

	"github.com/ShimmerHandmade/chattown-app-release/internal/storage"
	"github.com/valyala/fastjson"
	"golang.org/x/crypto/bcrypt"
)

type authResponse struct {
	User         storage.User `json:"user"`
	SessionToken string       `json:"sessionToken"`
}

// signup handles HTTP requests on "/auth/signup"
func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.authPool.Get()
	defer h.parsers.authPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	emailValue := v.Get("email")
	if emailValue == nil || emailValue.Type() != fastjson.TypeString {
		h.badRequest(w, `Field "email" must be a string`)
		return
	}
	email := string(emailValue.GetStringBytes())
	if _, err := mail.ParseAddress(email); err != nil {
		h.badRequest(w, "Invalid email address")
		return
	}

	passwordValue := v.Get("password")
	if passwordValue == nil || passwordValue.Type() != fastjson.TypeString {
		h.badRequest(w, `Field "password" must be a string`)
		return
	}
	password := string(passwordValue.GetStringBytes())
	if len(password) < passwordMinLength {
		h.badRequest(w, "Password must be at least 6 characters")
		return
	}

	nameValue := v.Get("name")
	if nameValue == nil || nameValue.Type() != fastjson.TypeString {
		h.badRequest(w, `Field "name" must be a string`)
		return
	}
	name := string(nameValue.GetStringBytes())
	if len(name) == 0 {
		h.badRequest(w, `Field "name" must have non-zero length`)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.internalError(w, err)
		return
	}

	u, err := h.store.CreateUser(r.Context(), email, string(hash), name)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			h.badRequest(w, "Email already in use")
			return
		}
		h.internalError(w, err)
		return
	}

	token, err := h.store.CreateSession(r.Context(), u.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusCreated, authResponse{User: u, SessionToken: token})
}

// login handles HTTP requests on "/auth/login"
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.authPool.Get()
	defer h.parsers.authPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	emailValue := v.Get("email")
	if emailValue == nil || emailValue.Type() != fastjson.TypeString {
		h.badRequest(w, `Field "email" must be a string`)
		return
	}
	email := string(emailValue.GetStringBytes())

	passwordValue := v.Get("password")
	if passwordValue == nil || passwordValue.Type() != fastjson.TypeString {
		h.badRequest(w, `Field "password" must be a string`)
		return
	}
	password := string(passwordValue.GetStringBytes())

	u, err := h.store.UserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Invalid email or password")
			return
		}
		h.internalError(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.store.CreateSession(r.Context(), u.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, authResponse{User: u, SessionToken: token})
}

// logout handles HTTP requests on "/auth/logout"
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	if err := h.store.DeleteSession(r.Context(), token); err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, successResponse{Success: true})
}

// me handles HTTP requests on "/auth/me"
func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	writeJSON(h.logger, w, http.StatusOK, u)
}

// deleteAccount handles HTTP requests on "/auth/delete-account".
// Sessions, push tokens, memberships and authored messages cascade in storage.
func (h *handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	if err := h.store.DeleteUser(r.Context(), u.ID); err != nil {
		h.internalError(w, err)
		return
	}

	h.logger.Infof("Deleted account (id: %d)", u.ID)

	writeJSON(h.logger, w, http.StatusOK, successResponse{Success: true})
}

// forgotPassword handles HTTP requests on "/auth/forgot-password".
// Always reports success so the response does not leak which emails are
// registered; the reset token goes to the operational log, which stands in
// for the out-of-band delivery channel.
func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.authPool.Get()
	defer h.parsers.authPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	emailValue := v.Get("email")
	if emailValue == nil || emailValue.Type() != fastjson.TypeString {
		h.badRequest(w, `Field "email" must be a string`)
		return
	}
	email := string(emailValue.GetStringBytes())

	resp := successResponse{
		Success: true,
		Message: "If this email is registered, you will receive password reset instructions.",
	}

	u, err := h.store.UserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			writeJSON(h.logger, w, http.StatusOK, resp)
			return
		}
		h.internalError(w, err)
		return
	}

	token, err := h.store.CreateResetToken(r.Context(), u.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.logger.Infof("Password reset requested for %s, reset token: %s", u.Email, token)

	writeJSON(h.logger, w, http.StatusOK, resp)
}

// resetPassword handles HTTP requests on "/auth/reset-password".
// The token is single-use: it is consumed on success and deleted on sight
// when expired.
func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.authPool.Get()
	defer h.parsers.authPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	tokenValue := v.Get("token")
	if tokenValue == nil || tokenValue.Type() != fastjson.TypeString {
		h.badRequest(w, `Field "token" must be a string`)
		return
	}
	token := string(tokenValue.GetStringBytes())

	passwordValue := v.Get("newPassword")
	if passwordValue == nil || passwordValue.Type() != fastjson.TypeString {
		h.badRequest(w, `Field "newPassword" must be a string`)
		return
	}
	newPassword := string(passwordValue.GetStringBytes())
	if len(newPassword) < passwordMinLength {
		h.badRequest(w, "Password must be at least 6 characters")
		return
	}

	userID, err := h.store.ValidateResetToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, storage.ErrResetTokenInvalid) {
			h.badRequest(w, "Invalid or expired reset token")
			return
		}
		h.internalError(w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internalError(w, err)
		return
	}

	if err := h.store.UpdatePassword(r.Context(), userID, string(hash)); err != nil {
		h.internalError(w, err)
		return
	}

	if err := h.store.DeleteResetToken(r.Context(), token); err != nil {
		h.internalError(w, err)
		return
	}

	h.logger.Infof("Password reset completed for user (id: %d)", userID)

	writeJSON(h.logger, w, http.StatusOK, successResponse{
		Success: true,
		Message: "Password has been reset successfully",
	})
}
