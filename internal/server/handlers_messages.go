package server

import (
	"errors"
	"io/ioutil"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/ShimmerHandmade/chattown-app-release/internal/storage"
	"github.com/valyala/fastjson"
)

// sendMessage handles HTTP requests on "/messages/send".
// Only members may post; persisting the message succeeds independently of the
// push fan-out that follows it.
func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	roomID, ok := roomIDField(v)
	if !ok {
		h.badRequest(w, `Field "roomId" must be a valid room id greater than zero`)
		return
	}

	textValue := v.Get("text")
	if textValue == nil || textValue.Type() != fastjson.TypeString {
		h.badRequest(w, `Field "text" must be a string`)
		return
	}
	text := string(textValue.GetStringBytes())
	if len(text) == 0 {
		h.badRequest(w, `Field "text" must have non-zero length`)
		return
	}
	if utf8.RuneCountInString(text) > messageMaxLength {
		h.badRequest(w, "Message text must be at most 1000 characters")
		return
	}

	if !h.requireMember(r.Context(), w, roomID, u.ID) {
		return
	}

	message, err := h.store.CreateMessage(r.Context(), roomID, u.ID, text)
	if err != nil {
		if errors.Is(err, storage.ErrMessageBadRoom) {
			writeError(h.logger, w, http.StatusNotFound, codeNotFound, "Room not found")
			return
		}
		h.internalError(w, err)
		return
	}

	title := "New Message"
	if room, err := h.store.RoomByID(r.Context(), roomID); err == nil {
		title = room.Name
	}

	h.pusher.NotifyRoomMembers(r.Context(), roomID, u.ID, title, u.Name+": "+text, map[string]string{
		"roomId": strconv.FormatInt(roomID, 10),
		"type":   "new_message",
	})

	writeJSON(h.logger, w, http.StatusCreated, message)
}

// listMessages handles HTTP requests on "/messages/list".
// Only members may read; a deleted or unknown room id fails NOT_FOUND.
func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		writeError(h.logger, w, http.StatusUnauthorized, codeUnauthorized, "Missing session token")
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	roomID, ok := roomIDField(v)
	if !ok {
		h.badRequest(w, `Field "roomId" must be a valid room id greater than zero`)
		return
	}

	if !h.requireMember(r.Context(), w, roomID, u.ID) {
		return
	}

	messages, err := h.store.MessagesByRoomID(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, storage.ErrRoomNotExist) {
			writeError(h.logger, w, http.StatusNotFound, codeNotFound, "Room not found")
			return
		}
		h.internalError(w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, messages)
}
