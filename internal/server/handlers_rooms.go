package server

import (
	"context"
	"errors"
	"io/ioutil"
	"net/http"

	"github.com/ShimmerHandmade/chattown-app-release/internal/storage"
	"github.com/valyala/fastjson"
)

// requireMember authorizes a room-scoped operation: the caller must be a
// member. Unknown rooms surface as NOT_FOUND, non-membership as FORBIDDEN.
// Reports whether the caller may proceed; the error response is already
// written when it may not.
func (h *handler) requireMember(ctx context.Context, w http.ResponseWriter, roomID, userID int64) bool {
	member, err := h.store.IsMember(ctx, roomID, userID)
	if err != nil {
		h.internalError(w, err)
		return false
	}
	if member {
		return true
	}

	if _, err := h.store.RoomByID(ctx, roomID); err != nil {
		if errors.Is(err, storage.ErrRoomNotExist) {
			writeError(h.logger, w, http.StatusNotFound, codeNotFound, "Room not found")
			return false
		}
		h.internalError(w, err)
		return false
	}

	writeError(h.logger, w, http.StatusForbidden, codeForbidden, "You are not a member of this room")
	return false
}

// roomIDField extracts and validates a positive "roomId" field
func roomIDField(v *fastjson.Value) (int64, bool) {
	roomValue := v.Get("roomId")
	if roomValue == nil {
		return 0, false
	}
	roomID, err := roomValue.Int64()
	if err != nil || roomID < 1 {
		return 0, false
	}
	return roomID, true
}

// createRoom handles HTTP requests on "/rooms/create".
// The creator becomes the room's first member.
func (h *handler) createRoom(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.roomsPool.Get()
	defer h.parsers.roomsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

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

	room, err := h.store.CreateRoom(r.Context(), name, u.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusCreated, room)
}

// joinRoom handles HTTP requests on "/rooms/join".
// Join codes match case-insensitively; joining a room twice leaves a single
// membership record.
func (h *handler) joinRoom(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.roomsPool.Get()
	defer h.parsers.roomsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	codeValue := v.Get("code")
	if codeValue == nil || codeValue.Type() != fastjson.TypeString {
		h.badRequest(w, `Field "code" must be a string`)
		return
	}
	code := string(codeValue.GetStringBytes())
	if len(code) == 0 {
		h.badRequest(w, `Field "code" must have non-zero length`)
		return
	}

	room, err := h.store.RoomByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, storage.ErrRoomNotExist) {
			writeError(h.logger, w, http.StatusNotFound, codeNotFound, "Room not found")
			return
		}
		h.internalError(w, err)
		return
	}

	if err := h.store.JoinRoom(r.Context(), room.ID, u.ID); err != nil {
		h.internalError(w, err)
		return
	}

	messages, err := h.store.MessagesByRoomID(r.Context(), room.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	room.Messages = messages

	writeJSON(h.logger, w, http.StatusOK, room)
}

// listRooms handles HTTP requests on "/rooms/list"
func (h *handler) listRooms(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	rooms, err := h.store.RoomsByUserID(r.Context(), u.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, rooms)
}

// deleteRoom handles HTTP requests on "/rooms/delete".
// Idempotent: deleting an unknown room id still reports success. Any
// authenticated caller may delete a room; there is no ownership record to
// check against.
func (h *handler) deleteRoom(w http.ResponseWriter, r *http.Request) {
	if _, ok := userFromContext(r.Context()); !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.roomsPool.Get()
	defer h.parsers.roomsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	roomID, ok := roomIDField(v)
	if !ok {
		h.badRequest(w, `Field "roomId" must be a valid room id greater than zero`)
		return
	}

	if err := h.store.DeleteRoom(r.Context(), roomID); err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, successResponse{Success: true})
}

// roomMembers handles HTTP requests on "/rooms/members".
// Only members may view the member list.
func (h *handler) roomMembers(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.roomsPool.Get()
	defer h.parsers.roomsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	roomID, ok := roomIDField(v)
	if !ok {
		h.badRequest(w, `Field "roomId" must be a valid room id greater than zero`)
		return
	}

	if !h.requireMember(r.Context(), w, roomID, u.ID) {
		return
	}

	members, err := h.store.RoomMembers(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, storage.ErrRoomNotExist) {
			writeError(h.logger, w, http.StatusNotFound, codeNotFound, "Room not found")
			return
		}
		h.internalError(w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, members)
}

// removeUser handles HTTP requests on "/rooms/remove-user".
// Idempotent: removing a non-member reports success.
func (h *handler) removeUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := userFromContext(r.Context()); !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.roomsPool.Get()
	defer h.parsers.roomsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	roomID, ok := roomIDField(v)
	if !ok {
		h.badRequest(w, `Field "roomId" must be a valid room id greater than zero`)
		return
	}

	userValue := v.Get("userId")
	if userValue == nil {
		h.badRequest(w, `Missing Field "userId"`)
		return
	}
	userID, err := userValue.Int64()
	if err != nil || userID < 1 {
		h.badRequest(w, `Field "userId" must be a valid user id greater than zero`)
		return
	}

	if err := h.store.LeaveRoom(r.Context(), roomID, userID); err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, successResponse{Success: true})
}

// leaveRoom handles HTTP requests on "/rooms/leave".
// Idempotent: leaving a room the caller is not in reports success.
func (h *handler) leaveRoom(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.roomsPool.Get()
	defer h.parsers.roomsPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	roomID, ok := roomIDField(v)
	if !ok {
		h.badRequest(w, `Field "roomId" must be a valid room id greater than zero`)
		return
	}

	if err := h.store.LeaveRoom(r.Context(), roomID, u.ID); err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, successResponse{Success: true})
}
