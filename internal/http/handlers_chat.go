package http

import (
	"net/http"

	applog "finledger/internal/log"
)

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.svc.Chat.History(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, applog.OpChat, err)
		return
	}

	out := make([]chatMessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, newChatMessageView(m))
	}
	NewResponse().JSON(out).Write(w)
}

// handleChatSend answers with the recorded reply. An assistant failure is
// not an error here: the reply is then the fallback apology.
func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpChat, err)
		return
	}

	release, err := guard(r, applog.OpChat, "send")
	if err != nil {
		writeError(w, r, applog.OpChat, err)
		return
	}
	defer release()

	reply, err := s.svc.Chat.Send(r.Context(), userID(r), sanitizeInput(req.Prompt), s.now())
	if err != nil {
		writeError(w, r, applog.OpChat, err)
		return
	}
	NewResponse().
		Trigger("chat:replied", map[string]int64{"id": reply.ID}).
		JSON(newChatMessageView(reply)).
		Write(w)
}

// handleSignOut drops the caller's session. Loads still in flight for it
// are discarded when they return.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.svc.Sessions.Close(userID(r))
	NewResponse().
		Status(http.StatusNoContent).
		Trigger("session:signed-out", struct{}{}).
		Write(w)
}
