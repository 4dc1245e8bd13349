package http

import (
	"net/http"

	"finledger/internal/core"
	applog "finledger/internal/log"
	"finledger/internal/services"
)

func (s *Server) handleListScheduled(w http.ResponseWriter, r *http.Request) {
	direction := core.Direction(r.URL.Query().Get("direction"))

	views, err := s.svc.Scheduled.List(r.Context(), userID(r), direction, s.today())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}

	out := make([]scheduledView, 0, len(views))
	for _, v := range views {
		out = append(out, newScheduledView(v))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateScheduled(w http.ResponseWriter, r *http.Request) {
	var req scheduledRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	item, err := s.svc.Scheduled.Create(r.Context(), core.ScheduledItem{
		UserID:      userID(r),
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
		DueDate:     req.DueDate,
		Direction:   req.Direction,
	})
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	NewResponse().
		Status(http.StatusCreated).
		TriggerChange("scheduled:created", item.DueDate).
		TriggerSuccessNotification("Scheduled item added").
		JSON(newScheduledView(services.View(item, s.today()))).
		Write(w)
}

// handleConfirmScheduled turns a pending item into a transaction. A second
// click while the first is still running is refused with 409; a confirm of
// an item that was already confirmed returns the original transaction.
func (s *Server) handleConfirmScheduled(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	release, err := guard(r, applog.OpConfirm, id)
	if err != nil {
		writeError(w, r, applog.OpConfirm, err)
		return
	}
	defer release()

	res, err := s.svc.Scheduled.Confirm(r.Context(), userID(r), id, s.now())
	if err != nil {
		writeError(w, r, applog.OpConfirm, err)
		return
	}

	resp := NewResponse().JSON(confirmView{
		Transaction: newTransactionView(res.Transaction),
		Replayed:    res.Replayed,
	})
	if res.Replayed {
		resp.TriggerNotification(NotificationInfo, "Already confirmed", 3000)
	} else {
		logChange(r, applog.OpConfirm, res.Transaction)
		resp.TriggerChange("scheduled:confirmed", res.Transaction.Date).
			TriggerSuccessNotification("Scheduled item confirmed")
	}
	resp.Write(w)
}

func (s *Server) handleDeleteScheduled(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	release, err := guard(r, applog.OpDelete, id)
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	defer release()

	if err := s.svc.Scheduled.Delete(r.Context(), userID(r), id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}

	NewResponse().
		Status(http.StatusNoContent).
		Trigger("scheduled:deleted", map[string]string{"id": id}).
		TriggerSuccessNotification("Scheduled item removed").
		Write(w)
}
