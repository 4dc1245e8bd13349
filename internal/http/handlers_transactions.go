package http

import (
	"net/http"

	"finledger/internal/core"
	applog "finledger/internal/log"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Reports.Dashboard(r.Context(), userID(r), s.today())
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(newDashboardView(d)).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.Transactions.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(newTransactionViews(txs)).Write(w)
}

func (s *Server) transactionFromRequest(w http.ResponseWriter, r *http.Request) (core.Transaction, error) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return core.Transaction{}, err
	}
	if req.Date.IsZero() {
		req.Date = s.today()
	}
	return core.Transaction{
		UserID:      userID(r),
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
		Date:        req.Date,
		Type:        req.Type,
	}, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.transactionFromRequest(w, r)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	created, err := s.svc.Transactions.Create(r.Context(), t)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	logChange(r, applog.OpCreate, created)
	NewResponse().
		Status(http.StatusCreated).
		TriggerChange("transaction:created", created.Date).
		TriggerSuccessNotification("Transaction recorded").
		JSON(newTransactionView(created)).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.transactionFromRequest(w, r)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	t.ID = r.PathValue("id")

	release, err := guard(r, applog.OpUpdate, t.ID)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	defer release()

	updated, err := s.svc.Transactions.Update(r.Context(), t)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}

	logChange(r, applog.OpUpdate, updated)
	NewResponse().
		TriggerChange("transaction:updated", updated.Date).
		TriggerSuccessNotification("Transaction updated").
		JSON(newTransactionView(updated)).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	release, err := guard(r, applog.OpDelete, id)
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	defer release()

	if err := s.svc.Transactions.Delete(r.Context(), userID(r), id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}

	NewResponse().
		Status(http.StatusNoContent).
		Trigger("transaction:deleted", map[string]string{"id": id}).
		TriggerSuccessNotification("Transaction deleted").
		Write(w)
}

func logChange(r *http.Request, op string, t core.Transaction) {
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogLedgerChange(r.Context(), op, t.UserID, t.ID, string(t.Type), t.Amount.Cents, t.Date.String())
}
