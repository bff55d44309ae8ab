package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/response"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// LedgerService is the part of the service layer exposed over HTTP.
type LedgerService interface {
	PreviewPlan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error)
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error)
	GetLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	GetSchedule(ctx context.Context, loanID string) (*domain.ScheduleResponse, error)
	GetLedgerState(ctx context.Context, loanID string) (*domain.OutstandingResponse, error)
	RecordPayment(ctx context.Context, loanID string, request *domain.MakePaymentRequest) (*domain.PaymentResponse, error)
	UndoLastPayment(ctx context.Context, loanID string) (*domain.PaymentResponse, error)
	Settle(ctx context.Context, loanID string, request *domain.MakePaymentRequest) (*domain.PaymentResponse, error)
	Classify(ctx context.Context, loanID string, asOf time.Time) (*domain.Classification, error)
	IsDelinquent(ctx context.Context, loanID string) (*domain.DelinquentResponse, error)
	ForeclosureQuote(ctx context.Context, loanID string, penaltyPercent decimal.NullDecimal) (*domain.ForeclosureQuote, error)
	CommitForeclosure(ctx context.Context, loanID string, request *domain.ForecloseRequest) (*domain.PaymentResponse, error)
	MarkDefaulted(ctx context.Context, loanID string) (*domain.OutstandingResponse, error)
}

type LedgerHandler struct {
	service   LedgerService
	validator *validator.Validate
	log       *zap.Logger
}

func NewLedgerHandler(service LedgerService, log *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		service:   service,
		validator: validator.New(),
		log:       log.Named("http"),
	}
}

// Routes registers the ledger endpoints on an /api/v1 subrouter.
func (h *LedgerHandler) Routes(api *mux.Router) {
	api.HandleFunc("/plans/preview", h.PreviewPlan).Methods(http.MethodPost)
	api.HandleFunc("/loans", h.CreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}", h.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/schedule", h.GetSchedule).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/outstanding", h.GetOutstanding).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/payment", h.MakePayment).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/payment/last", h.UndoLastPayment).Methods(http.MethodDelete)
	api.HandleFunc("/loans/{loanId}/settle", h.Settle).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/overdue", h.GetOverdue).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/delinquent", h.IsDelinquent).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/foreclosure", h.GetForeclosureQuote).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/foreclose", h.Foreclose).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/default", h.MarkDefaulted).Methods(http.MethodPost)
}

func (h *LedgerHandler) PreviewPlan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.PreviewPlan(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *LedgerHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.CreateLoan(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, result)
}

func (h *LedgerHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.service.GetLoan(r.Context(), loanID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, loan)
}

func (h *LedgerHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.service.GetSchedule(r.Context(), loanID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, schedule)
}

func (h *LedgerHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.GetLedgerState(r.Context(), loanID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, state)
}

func (h *LedgerHandler) MakePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.MakePaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.RecordPayment(r.Context(), loanID(r), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, result)
}

func (h *LedgerHandler) UndoLastPayment(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.UndoLastPayment(r.Context(), loanID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *LedgerHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req domain.MakePaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Settle(r.Context(), loanID(r), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, result)
}

// GetOverdue classifies the schedule as of the as_of query date, or today.
func (h *LedgerHandler) GetOverdue(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := utils.ParseDate(raw)
		if err != nil {
			h.badRequest(w, "as_of must be YYYY-MM-DD", err)
			return
		}
		asOf = parsed
	}

	result, err := h.service.Classify(r.Context(), loanID(r), asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *LedgerHandler) IsDelinquent(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.IsDelinquent(r.Context(), loanID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *LedgerHandler) GetForeclosureQuote(w http.ResponseWriter, r *http.Request) {
	var penalty decimal.NullDecimal
	if raw := r.URL.Query().Get("penalty_percent"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			h.badRequest(w, "penalty_percent must be a decimal", err)
			return
		}
		penalty = decimal.NewNullDecimal(parsed)
	}

	quote, err := h.service.ForeclosureQuote(r.Context(), loanID(r), penalty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, quote)
}

func (h *LedgerHandler) Foreclose(w http.ResponseWriter, r *http.Request) {
	var req domain.ForecloseRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.CommitForeclosure(r.Context(), loanID(r), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, result)
}

func (h *LedgerHandler) MarkDefaulted(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.MarkDefaulted(r.Context(), loanID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, result)
}

func loanID(r *http.Request) string {
	return mux.Vars(r)["loanId"]
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports whether the handler may continue.
func (h *LedgerHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.badRequest(w, "Invalid request body", err)
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		var details map[string]interface{}
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			details = make(map[string]interface{}, len(fieldErrors))
			for _, fe := range fieldErrors {
				details[fe.Field()] = fe.Tag()
			}
		}
		response.ErrorWithCode(w, http.StatusBadRequest, customError.ErrCodeInvalidRequest, "Validation failed", err, details)
		return false
	}
	return true
}

func (h *LedgerHandler) badRequest(w http.ResponseWriter, message string, err error) {
	response.ErrorWithCode(w, http.StatusBadRequest, customError.ErrCodeInvalidRequest, message, err, nil)
}

// writeError maps a service error onto an HTTP status.
func (h *LedgerHandler) writeError(w http.ResponseWriter, err error) {
	var be *customError.BusinessError
	if !errors.As(err, &be) {
		h.log.Error("unclassified service error", zap.Error(err))
		response.InternalServerError(w, "Internal server error", nil)
		return
	}

	var details map[string]interface{}
	var over *customError.OverpaymentError
	if errors.As(err, &over) {
		details = map[string]interface{}{"excess": over.Excess}
	}

	status := statusFor(be.Code)
	if status == http.StatusInternalServerError {
		// storage failures are logged by the service; keep them out of the body
		response.ErrorWithCode(w, status, be.Code, be.Message, nil, nil)
		return
	}
	response.ErrorWithCode(w, status, be.Code, be.Message, be.Err, details)
}

func statusFor(code string) int {
	switch code {
	case customError.ErrCodeLoanNotFound:
		return http.StatusNotFound
	case customError.ErrCodeInvalidRequest,
		customError.ErrCodeInvalidPlan,
		customError.ErrCodeInvalidPaymentAmount,
		customError.ErrCodeInvalidPaymentMode:
		return http.StatusBadRequest
	case customError.ErrCodeLoanAlreadyExists,
		customError.ErrCodeLoanAlreadySettled,
		customError.ErrCodeNothingToUndo,
		customError.ErrCodeSettlementRejected,
		customError.ErrCodeForeclosureRejected,
		customError.ErrCodeConcurrentModification,
		customError.ErrCodeLoanLocked:
		return http.StatusConflict
	case customError.ErrCodeOverpayment:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
