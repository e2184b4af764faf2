package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/clubworks/billing-engine/internal/gateway"
	"github.com/clubworks/billing-engine/internal/ledger/domain"
	"github.com/clubworks/billing-engine/internal/ledger/usecase/command"
	"github.com/clubworks/billing-engine/internal/ledger/usecase/query"
	"github.com/clubworks/billing-engine/internal/processor"
	"github.com/clubworks/billing-engine/internal/reconcile"
	"github.com/clubworks/billing-engine/kafka"
	"github.com/clubworks/billing-engine/pkg/logger"
)

// BillingHandler handles HTTP requests for the billing ledger using CQRS pattern
type BillingHandler struct {
	// Command handlers
	stageHandler    *command.StageInvoiceHandler
	scheduleHandler *command.ScheduleInstallmentsHandler
	activateHandler *command.ActivatePlanHandler
	payoffHandler   *command.PayoffPlanHandler
	cancelHandler   *command.CancelPlanHandler
	refundHandler   *command.RefundPaymentHandler

	// Query handlers
	getInvoiceHandler   *query.GetInvoiceHandler
	listInvoicesHandler *query.ListInvoicesHandler
	listDueHandler      *query.ListDueHandler

	processor *processor.Processor
	syncer    *reconcile.Syncer
}

// NewBillingHandler creates a new billing handler (manual DI)
func NewBillingHandler(ledger domain.Ledger, charger gateway.Charger, methods gateway.MethodResolver, notifier kafka.Notifier, proc *processor.Processor, syncer *reconcile.Syncer) *BillingHandler {
	return &BillingHandler{
		stageHandler:        command.NewStageInvoiceHandler(ledger),
		scheduleHandler:     command.NewScheduleInstallmentsHandler(ledger),
		activateHandler:     command.NewActivatePlanHandler(ledger),
		payoffHandler:       command.NewPayoffPlanHandler(ledger, charger, methods, notifier),
		cancelHandler:       command.NewCancelPlanHandler(ledger, notifier),
		refundHandler:       command.NewRefundPaymentHandler(ledger),
		getInvoiceHandler:   query.NewGetInvoiceHandler(ledger),
		listInvoicesHandler: query.NewListInvoicesHandler(ledger),
		listDueHandler:      query.NewListDueHandler(ledger),
		processor:           proc,
		syncer:              syncer,
	}
}

// NewBillingHandlerWithDI creates a new billing handler using dependency injection
func NewBillingHandlerWithDI(
	stageHandler *command.StageInvoiceHandler,
	scheduleHandler *command.ScheduleInstallmentsHandler,
	activateHandler *command.ActivatePlanHandler,
	payoffHandler *command.PayoffPlanHandler,
	cancelHandler *command.CancelPlanHandler,
	refundHandler *command.RefundPaymentHandler,
	getInvoiceHandler *query.GetInvoiceHandler,
	listInvoicesHandler *query.ListInvoicesHandler,
	listDueHandler *query.ListDueHandler,
	proc *processor.Processor,
	syncer *reconcile.Syncer,
) *BillingHandler {
	return &BillingHandler{
		stageHandler:        stageHandler,
		scheduleHandler:     scheduleHandler,
		activateHandler:     activateHandler,
		payoffHandler:       payoffHandler,
		cancelHandler:       cancelHandler,
		refundHandler:       refundHandler,
		getInvoiceHandler:   getInvoiceHandler,
		listInvoicesHandler: listInvoicesHandler,
		listDueHandler:      listDueHandler,
		processor:           proc,
		syncer:              syncer,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// statusFor maps domain sentinel errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvoiceNotFound),
		errors.Is(err, domain.ErrInstallmentNotFound),
		errors.Is(err, domain.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyStaged),
		errors.Is(err, domain.ErrAlreadyScheduled),
		errors.Is(err, domain.ErrPlanCancelled),
		errors.Is(err, domain.ErrPlanNotActive),
		errors.Is(err, domain.ErrAlreadySettled),
		errors.Is(err, domain.ErrAlreadyRefunded),
		errors.Is(err, domain.ErrNothingOutstanding),
		errors.Is(err, domain.ErrCollectionInFlight),
		errors.Is(err, domain.ErrNotChargeable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrNoPaymentMethod),
		errors.Is(err, domain.ErrChargeDeclined):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondDomainError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), Response{
		Success: false,
		Error:   err.Error(),
	})
}

// StageInvoice handles POST /api/invoices. With installments > 1 in the
// request, the invoice is staged and its plan scheduled in one call.
func (h *BillingHandler) StageInvoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID         uint   `json:"user_id"`
		RegistrationID uint   `json:"registration_id"`
		TotalAmount    int64  `json:"total_amount"`
		DiscountAmount int64  `json:"discount_amount"`
		Draft          bool   `json:"draft"`
		Installments   int    `json:"installments"`
		FirstDueDate   string `json:"first_due_date"`
		UpfrontAmount  int64  `json:"upfront_amount"`
		GatewayRef     string `json:"gateway_ref"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	var firstDue time.Time
	if req.FirstDueDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.FirstDueDate)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{
				Success: false,
				Error:   "first_due_date must be RFC3339",
			})
			return
		}
		firstDue = parsed
	}

	ctx := r.Context()
	staged, err := h.stageHandler.Handle(ctx, command.StageInvoiceCommand{
		UserID:            req.UserID,
		RegistrationID:    req.RegistrationID,
		TotalAmount:       req.TotalAmount,
		DiscountAmount:    req.DiscountAmount,
		Draft:             req.Draft,
		UpfrontAmount:     req.UpfrontAmount,
		UpfrontGatewayRef: req.GatewayRef,
	})
	if err != nil {
		logger.Error(ctx).Err(err).Uint("registration_id", req.RegistrationID).Msg("Failed to stage invoice")
		respondDomainError(w, err)
		return
	}

	data := map[string]interface{}{
		"invoice": staged.Invoice,
	}
	if staged.UpfrontPayment != nil {
		data["upfront_payment"] = staged.UpfrontPayment
	}

	if req.Installments > 1 {
		cmd := command.ScheduleInstallmentsCommand{
			InvoiceID:    staged.Invoice.ID,
			Count:        req.Installments,
			FirstDueDate: firstDue,
		}
		if staged.UpfrontPayment != nil {
			cmd.FirstPaymentID = &staged.UpfrontPayment.ID
		}

		installments, err := h.scheduleHandler.Handle(ctx, cmd)
		if err != nil {
			// The invoice exists; report the scheduling failure with it so
			// the caller can retry the schedule step alone
			logger.Error(ctx).Err(err).Uint("invoice_id", staged.Invoice.ID).Msg("Failed to schedule installments")
			respondJSON(w, statusFor(err), Response{
				Success: false,
				Error:   err.Error(),
				Data:    data,
			})
			return
		}
		data["installments"] = installments
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Invoice staged successfully",
		Data:    data,
	})
}

// GetInvoice handles GET /api/invoices/{id}
func (h *BillingHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid invoice ID",
		})
		return
	}

	details, err := h.getInvoiceHandler.Handle(r.Context(), query.GetInvoiceQuery{InvoiceID: uint(id)})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	// Members only see their own invoices
	if !isAdmin(r) {
		userID, ok := r.Context().Value(UserIDKey).(uint)
		if !ok || details.Invoice.UserID != userID {
			respondJSON(w, http.StatusForbidden, Response{
				Success: false,
				Error:   "Access denied",
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    details,
	})
}

// GetMyInvoices handles GET /api/invoices/my (authenticated user)
func (h *BillingHandler) GetMyInvoices(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(UserIDKey).(uint)
	if !ok {
		respondJSON(w, http.StatusUnauthorized, Response{
			Success: false,
			Error:   "User ID not found in context",
		})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	invoices, err := h.listInvoicesHandler.Handle(r.Context(), query.ListInvoicesQuery{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to list user invoices")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to list invoices",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"invoices": invoices,
			"total":    len(invoices),
		},
	})
}

// ListInvoices handles GET /api/invoices
func (h *BillingHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	userID, _ := strconv.ParseUint(r.URL.Query().Get("user_id"), 10, 32)

	invoices, err := h.listInvoicesHandler.Handle(r.Context(), query.ListInvoicesQuery{
		UserID: uint(userID),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to list invoices")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to list invoices",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"invoices": invoices,
			"total":    len(invoices),
		},
	})
}

// ScheduleInstallments handles POST /api/invoices/{id}/schedule
func (h *BillingHandler) ScheduleInstallments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid invoice ID",
		})
		return
	}

	var req struct {
		Count          int    `json:"count"`
		FirstDueDate   string `json:"first_due_date"`
		FirstPaymentID *uint  `json:"first_payment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	var firstDue time.Time
	if req.FirstDueDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.FirstDueDate)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{
				Success: false,
				Error:   "first_due_date must be RFC3339",
			})
			return
		}
		firstDue = parsed
	}

	installments, err := h.scheduleHandler.Handle(r.Context(), command.ScheduleInstallmentsCommand{
		InvoiceID:      uint(id),
		Count:          req.Count,
		FirstDueDate:   firstDue,
		FirstPaymentID: req.FirstPaymentID,
	})
	if err != nil {
		logger.Error(r.Context()).Err(err).Uint("invoice_id", uint(id)).Msg("Failed to schedule installments")
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Installments scheduled successfully",
		Data: map[string]interface{}{
			"installments": installments,
			"total":        len(installments),
		},
	})
}

// ActivatePlan handles POST /api/invoices/{id}/activate
func (h *BillingHandler) ActivatePlan(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid invoice ID",
		})
		return
	}

	invoice, err := h.activateHandler.Handle(r.Context(), command.ActivatePlanCommand{InvoiceID: uint(id)})
	if err != nil {
		logger.Error(r.Context()).Err(err).Uint("invoice_id", uint(id)).Msg("Failed to activate plan")
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Plan activated successfully",
		Data:    invoice,
	})
}

// PayoffPlan handles POST /api/invoices/{id}/payoff
func (h *BillingHandler) PayoffPlan(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid invoice ID",
		})
		return
	}

	// Members only pay off their own invoices
	if !isAdmin(r) {
		details, err := h.getInvoiceHandler.Handle(r.Context(), query.GetInvoiceQuery{InvoiceID: uint(id)})
		if err != nil {
			respondDomainError(w, err)
			return
		}
		userID, ok := r.Context().Value(UserIDKey).(uint)
		if !ok || details.Invoice.UserID != userID {
			respondJSON(w, http.StatusForbidden, Response{
				Success: false,
				Error:   "Access denied",
			})
			return
		}
	}

	result, err := h.payoffHandler.Handle(r.Context(), command.PayoffPlanCommand{InvoiceID: uint(id)})
	if err != nil {
		logger.Error(r.Context()).Err(err).Uint("invoice_id", uint(id)).Msg("Failed to pay off plan")
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Plan paid off successfully",
		Data: map[string]interface{}{
			"invoice":              result.Invoice,
			"payment":              result.Payment,
			"installments_settled": result.Settled,
		},
	})
}

// CancelPlan handles POST /api/invoices/{id}/cancel
func (h *BillingHandler) CancelPlan(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid invoice ID",
		})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	invoice, err := h.cancelHandler.Handle(r.Context(), command.CancelPlanCommand{
		InvoiceID: uint(id),
		Reason:    req.Reason,
	})
	if err != nil {
		logger.Error(r.Context()).Err(err).Uint("invoice_id", uint(id)).Msg("Failed to cancel plan")
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Plan cancelled successfully",
		Data:    invoice,
	})
}

// RefundPayment handles POST /api/payments/{id}/refund
func (h *BillingHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid payment ID",
		})
		return
	}

	var req struct {
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	refund, err := h.refundHandler.Handle(r.Context(), command.RefundPaymentCommand{
		PaymentID: uint(id),
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		logger.Error(r.Context()).Err(err).Uint("payment_id", uint(id)).Msg("Failed to refund payment")
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Refund recorded successfully",
		Data:    refund,
	})
}

// ListDue handles GET /api/installments/due
func (h *BillingHandler) ListDue(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{
				Success: false,
				Error:   "as_of must be RFC3339",
			})
			return
		}
		asOf = parsed
	}

	installments, err := h.listDueHandler.Handle(r.Context(), query.ListDueQuery{
		AsOf:  asOf,
		Limit: limit,
	})
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to list due installments")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to list due installments",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"installments": installments,
			"total":        len(installments),
		},
	})
}

// RunProcessDue handles POST /api/admin/process-due. With installment_id
// the run targets that single installment instead of the whole due batch.
func (h *BillingHandler) RunProcessDue(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{
				Success: false,
				Error:   "as_of must be RFC3339",
			})
			return
		}
		asOf = parsed
	}

	if raw := r.URL.Query().Get("installment_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{
				Success: false,
				Error:   "installment_id must be numeric",
			})
			return
		}

		if err := h.processor.ProcessOne(r.Context(), uint(id), asOf); err != nil {
			logger.Error(r.Context()).Err(err).Uint64("installment_id", id).Msg("Targeted collection failed")
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Installment collected",
			Data:    &processor.Result{Processed: 1},
		})
		return
	}

	result, err := h.processor.ProcessDue(r.Context(), asOf)
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Collection batch failed")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   err.Error(),
			Data:    result,
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Collection batch finished",
		Data:    result,
	})
}

// RunSync handles POST /api/admin/sync
func (h *BillingHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncer.SyncPending(r.Context())
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Reconciliation pass failed")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   err.Error(),
			Data:    result,
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Reconciliation pass finished",
		Data:    result,
	})
}

// RunRecover handles POST /api/admin/recover
func (h *BillingHandler) RunRecover(w http.ResponseWriter, r *http.Request) {
	olderThan := time.Duration(0)
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{
				Success: false,
				Error:   "older_than must be a duration like 30m",
			})
			return
		}
		olderThan = parsed
	}

	recovered, err := h.processor.RecoverStale(r.Context(), olderThan)
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Stale recovery failed")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Stale recovery finished",
		Data: map[string]interface{}{
			"recovered": recovered,
		},
	})
}

// metricsMiddleware records request count and latency per endpoint
func (h *BillingHandler) metricsMiddleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		requestLatency.WithLabelValues(r.Method, endpoint).Observe(duration)
		requestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(rw.statusCode)).Inc()
	}
}

// RegisterRoutes registers all billing routes
func (h *BillingHandler) RegisterRoutes(router *mux.Router) {
	// Authenticated user routes (any logged-in user); /my must precede {id}
	router.HandleFunc("/api/invoices/my", AuthMiddleware(h.metricsMiddleware("/api/invoices/my", h.GetMyInvoices))).Methods("GET")
	router.HandleFunc("/api/invoices/{id}", AuthMiddleware(h.metricsMiddleware("/api/invoices/{id}", h.GetInvoice))).Methods("GET")
	router.HandleFunc("/api/invoices/{id}/payoff", AuthMiddleware(h.metricsMiddleware("/api/invoices/{id}/payoff", h.PayoffPlan))).Methods("POST")

	// Admin routes (require admin role)
	router.HandleFunc("/api/invoices", AdminMiddleware(h.metricsMiddleware("/api/invoices", h.StageInvoice))).Methods("POST")
	router.HandleFunc("/api/invoices", AdminMiddleware(h.metricsMiddleware("/api/invoices", h.ListInvoices))).Methods("GET")
	router.HandleFunc("/api/invoices/{id}/schedule", AdminMiddleware(h.metricsMiddleware("/api/invoices/{id}/schedule", h.ScheduleInstallments))).Methods("POST")
	router.HandleFunc("/api/invoices/{id}/activate", AdminMiddleware(h.metricsMiddleware("/api/invoices/{id}/activate", h.ActivatePlan))).Methods("POST")
	router.HandleFunc("/api/invoices/{id}/cancel", AdminMiddleware(h.metricsMiddleware("/api/invoices/{id}/cancel", h.CancelPlan))).Methods("POST")
	router.HandleFunc("/api/payments/{id}/refund", AdminMiddleware(h.metricsMiddleware("/api/payments/{id}/refund", h.RefundPayment))).Methods("POST")
	router.HandleFunc("/api/installments/due", AdminMiddleware(h.metricsMiddleware("/api/installments/due", h.ListDue))).Methods("GET")

	// Operational endpoints: run a worker pass on demand
	router.HandleFunc("/api/admin/process-due", AdminMiddleware(h.metricsMiddleware("/api/admin/process-due", h.RunProcessDue))).Methods("POST")
	router.HandleFunc("/api/admin/sync", AdminMiddleware(h.metricsMiddleware("/api/admin/sync", h.RunSync))).Methods("POST")
	router.HandleFunc("/api/admin/recover", AdminMiddleware(h.metricsMiddleware("/api/admin/recover", h.RunRecover))).Methods("POST")
}

// RegisterHealthCheck registers health check endpoint
func (h *BillingHandler) RegisterHealthCheck(router *mux.Router, db *sql.DB) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, Response{
				Success: false,
				Error:   "Database unavailable",
			})
			return
		}

		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Billing service is healthy",
		})
	}).Methods("GET")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
