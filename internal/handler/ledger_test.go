package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/handler"
	"github.com/segyhp/loan-ledger/internal/mocks"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

type envelope struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code"`
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
	Data    json.RawMessage        `json:"data"`
}

func newRouter(svc *mocks.MockLedgerService) *mux.Router {
	router := mux.NewRouter()
	handler.NewLedgerHandler(svc, zap.NewNop()).Routes(router.PathPrefix("/api/v1").Subrouter())
	return router
}

func serve(t *testing.T, svc *mocks.MockLedgerService, method, target string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestLedgerHandler_CreateLoan(t *testing.T) {
	valid := map[string]interface{}{
		"loan_id":       "LOAN-W",
		"customer_name": "Ravi",
		"kind":          "Weekly",
		"principal":     10000,
		"given_date":    "2024-01-01",
		"anchor_date":   "2024-01-07",
	}

	tests := []struct {
		name           string
		body           interface{}
		setupMock      func(*mocks.MockLedgerService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "created",
			body: valid,
			setupMock: func(m *mocks.MockLedgerService) {
				m.On("CreateLoan", mock.Anything, mock.MatchedBy(func(req *domain.CreateLoanRequest) bool {
					return req.LoanID == "LOAN-W" && req.Kind == domain.KindWeeklyInstallment && req.Principal == 10000
				})).Return(&domain.CreateLoanResponse{
					Loan:     &domain.Loan{LoanPlan: domain.LoanPlan{LoanID: "LOAN-W", PeriodicAmount: 1000}},
					Schedule: []domain.ScheduleEntry{{Index: 0, DueAmount: 1000}},
				}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "malformed json",
			body:           `{"loan_id":`,
			setupMock:      func(*mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeInvalidRequest,
		},
		{
			name: "unknown kind",
			body: map[string]interface{}{
				"loan_id": "LOAN-X", "customer_name": "Ravi", "kind": "fortnightly",
				"principal": 10000, "given_date": "2024-01-01", "anchor_date": "2024-01-07",
			},
			setupMock:      func(*mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeInvalidRequest,
		},
		{
			name:           "missing fields",
			body:           map[string]interface{}{"loan_id": "LOAN-X"},
			setupMock:      func(*mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeInvalidRequest,
		},
		{
			name: "plan rejected",
			body: valid,
			setupMock: func(m *mocks.MockLedgerService) {
				m.On("CreateLoan", mock.Anything, mock.Anything).
					Return(nil, customError.WrapLedgerError("LOAN-W", customError.ErrScheduleAnchorMismatch)).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeInvalidPlan,
		},
		{
			name: "duplicate",
			body: valid,
			setupMock: func(m *mocks.MockLedgerService) {
				m.On("CreateLoan", mock.Anything, mock.Anything).
					Return(nil, customError.WrapLoanAlreadyExists("LOAN-W")).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   customError.ErrCodeLoanAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := mocks.NewMockLedgerService()
			tt.setupMock(svc)

			w, env := serve(t, svc, http.MethodPost, "/api/v1/loans", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedCode, env.Code)
			assert.Equal(t, tt.expectedStatus < 300, env.Success)
			svc.AssertExpectations(t)
		})
	}
}

func TestLedgerHandler_CreateLoan_ValidationDetails(t *testing.T) {
	svc := mocks.NewMockLedgerService()

	_, env := serve(t, svc, http.MethodPost, "/api/v1/loans", map[string]interface{}{"loan_id": "LOAN-X"})

	assert.Equal(t, "required", env.Details["CustomerName"])
	assert.Equal(t, "required", env.Details["GivenDate"])
	svc.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
}

func TestLedgerHandler_MakePayment(t *testing.T) {
	body := map[string]interface{}{"amount": 1000, "mode": "cash", "paid_date": "2024-01-14"}

	tests := []struct {
		name           string
		body           interface{}
		err            error
		expectedStatus int
		expectedCode   string
		check          func(t *testing.T, env envelope)
	}{
		{
			name:           "recorded",
			body:           body,
			expectedStatus: http.StatusCreated,
			check: func(t *testing.T, env envelope) {
				var result domain.PaymentResponse
				require.NoError(t, json.Unmarshal(env.Data, &result))
				assert.Equal(t, int64(9000), result.State.Balance)
			},
		},
		{
			name:           "overpayment reports the excess",
			body:           body,
			err:            customError.WrapLedgerError("LOAN-W", customError.NewOverpaymentError(3000)),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   customError.ErrCodeOverpayment,
			check: func(t *testing.T, env envelope) {
				assert.Equal(t, float64(3000), env.Details["excess"])
			},
		},
		{
			name:           "loan locked",
			body:           body,
			err:            customError.WrapLoanLocked("LOAN-W"),
			expectedStatus: http.StatusConflict,
			expectedCode:   customError.ErrCodeLoanLocked,
		},
		{
			name:           "concurrent modification",
			body:           body,
			err:            customError.WrapConcurrentModification("LOAN-W"),
			expectedStatus: http.StatusConflict,
			expectedCode:   customError.ErrCodeConcurrentModification,
		},
		{
			name:           "storage failure hides the cause",
			body:           body,
			err:            customError.WrapDatabaseError(errors.New("pq: password authentication failed")),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   customError.ErrCodeDatabaseError,
			check: func(t *testing.T, env envelope) {
				assert.NotContains(t, env.Error, "password")
			},
		},
		{
			name:           "unclassified error",
			body:           body,
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "unknown mode",
			body:           map[string]interface{}{"amount": 1000, "mode": "card"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := mocks.NewMockLedgerService()
			if tt.expectedStatus != http.StatusBadRequest {
				var result *domain.PaymentResponse
				if tt.err == nil {
					result = &domain.PaymentResponse{
						Record: &domain.PaymentRecord{Sequence: 1, Amount: 1000},
						State:  domain.LedgerState{Balance: 9000, Status: domain.LoanStatusActive},
					}
				}
				svc.On("RecordPayment", mock.Anything, "LOAN-W", mock.MatchedBy(func(req *domain.MakePaymentRequest) bool {
					return req.Amount == 1000 && req.Mode == "cash"
				})).Return(result, tt.err).Once()
			}

			w, env := serve(t, svc, http.MethodPost, "/api/v1/loans/LOAN-W/payment", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedCode, env.Code)
			if tt.check != nil {
				tt.check(t, env)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestLedgerHandler_ReadRoutes(t *testing.T) {
	tests := []struct {
		name   string
		target string
		method string
		setup  func(m *mocks.MockLedgerService)
	}{
		{
			name:   "loan",
			target: "/api/v1/loans/LOAN-W",
			method: "GetLoan",
			setup: func(m *mocks.MockLedgerService) {
				m.On("GetLoan", mock.Anything, "LOAN-W").Return(&domain.Loan{}, nil)
			},
		},
		{
			name:   "schedule",
			target: "/api/v1/loans/LOAN-W/schedule",
			method: "GetSchedule",
			setup: func(m *mocks.MockLedgerService) {
				m.On("GetSchedule", mock.Anything, "LOAN-W").Return(&domain.ScheduleResponse{LoanID: "LOAN-W"}, nil)
			},
		},
		{
			name:   "outstanding",
			target: "/api/v1/loans/LOAN-W/outstanding",
			method: "GetLedgerState",
			setup: func(m *mocks.MockLedgerService) {
				m.On("GetLedgerState", mock.Anything, "LOAN-W").Return(&domain.OutstandingResponse{LoanID: "LOAN-W"}, nil)
			},
		},
		{
			name:   "delinquent",
			target: "/api/v1/loans/LOAN-W/delinquent",
			method: "IsDelinquent",
			setup: func(m *mocks.MockLedgerService) {
				m.On("IsDelinquent", mock.Anything, "LOAN-W").Return(&domain.DelinquentResponse{LoanID: "LOAN-W", IsDelinquent: true}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := mocks.NewMockLedgerService()
			tt.setup(svc)

			w, env := serve(t, svc, http.MethodGet, tt.target, nil)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, env.Success)
			svc.AssertCalled(t, tt.method, mock.Anything, "LOAN-W")
		})
	}
}

func TestLedgerHandler_GetLoan_NotFound(t *testing.T) {
	svc := mocks.NewMockLedgerService()
	svc.On("GetLoan", mock.Anything, "NOPE").Return(nil, customError.WrapLoanNotFound("NOPE"))

	w, env := serve(t, svc, http.MethodGet, "/api/v1/loans/NOPE", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, customError.ErrCodeLoanNotFound, env.Code)
}

func TestLedgerHandler_GetOverdue(t *testing.T) {
	t.Run("as_of is passed through", func(t *testing.T) {
		svc := mocks.NewMockLedgerService()
		asOf := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
		svc.On("Classify", mock.Anything, "LOAN-W", asOf).
			Return(&domain.Classification{LoanID: "LOAN-W", MissedCount: 5, DaysOverdue: 30}, nil).Once()

		w, env := serve(t, svc, http.MethodGet, "/api/v1/loans/LOAN-W/overdue?as_of=2024-02-27", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var c domain.Classification
		require.NoError(t, json.Unmarshal(env.Data, &c))
		assert.Equal(t, 30, c.DaysOverdue)
		svc.AssertExpectations(t)
	})

	t.Run("missing as_of means today", func(t *testing.T) {
		svc := mocks.NewMockLedgerService()
		svc.On("Classify", mock.Anything, "LOAN-W", time.Time{}).Return(&domain.Classification{}, nil).Once()

		w, _ := serve(t, svc, http.MethodGet, "/api/v1/loans/LOAN-W/overdue", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("bad as_of", func(t *testing.T) {
		svc := mocks.NewMockLedgerService()

		w, env := serve(t, svc, http.MethodGet, "/api/v1/loans/LOAN-W/overdue?as_of=27-02-2024", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, customError.ErrCodeInvalidRequest, env.Code)
		svc.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLedgerHandler_ForeclosureQuote(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		penalty decimal.NullDecimal
	}{
		{"default penalty", "", decimal.NullDecimal{}},
		{"explicit penalty", "?penalty_percent=2.5", decimal.NewNullDecimal(decimal.RequireFromString("2.5"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := mocks.NewMockLedgerService()
			svc.On("ForeclosureQuote", mock.Anything, "LOAN-A", mock.MatchedBy(func(p decimal.NullDecimal) bool {
				return p.Valid == tt.penalty.Valid && (!p.Valid || p.Decimal.Equal(tt.penalty.Decimal))
			})).Return(&domain.ForeclosureQuote{LoanID: "LOAN-A", ForeclosureAmount: 4250, PaymentCount: 7}, nil).Once()

			w, env := serve(t, svc, http.MethodGet, "/api/v1/loans/LOAN-A/foreclosure"+tt.query, nil)

			assert.Equal(t, http.StatusOK, w.Code)
			var quote domain.ForeclosureQuote
			require.NoError(t, json.Unmarshal(env.Data, &quote))
			assert.Equal(t, int64(4250), quote.ForeclosureAmount)
			svc.AssertExpectations(t)
		})
	}

	t.Run("bad penalty", func(t *testing.T) {
		svc := mocks.NewMockLedgerService()
		w, _ := serve(t, svc, http.MethodGet, "/api/v1/loans/LOAN-A/foreclosure?penalty_percent=two", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLedgerHandler_Foreclose_StaleQuote(t *testing.T) {
	svc := mocks.NewMockLedgerService()
	stale := customError.WrapLedgerError("LOAN-A", fmt.Errorf("%w: quoted 4250 at 7 payments", customError.ErrStaleQuote))
	svc.On("CommitForeclosure", mock.Anything, "LOAN-A", mock.MatchedBy(func(req *domain.ForecloseRequest) bool {
		return req.QuotedAmount == 4250 && req.QuotedPaymentCount == 7
	})).Return(nil, stale).Once()

	w, env := serve(t, svc, http.MethodPost, "/api/v1/loans/LOAN-A/foreclose", map[string]interface{}{
		"quoted_amount":        4250,
		"quoted_payment_count": 7,
		"mode":                 "upi",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, customError.ErrCodeForeclosureRejected, env.Code)
	svc.AssertExpectations(t)
}

func TestLedgerHandler_Mutations(t *testing.T) {
	paid := &domain.PaymentResponse{Record: &domain.PaymentRecord{Sequence: 3}}

	t.Run("undo last payment", func(t *testing.T) {
		svc := mocks.NewMockLedgerService()
		svc.On("UndoLastPayment", mock.Anything, "LOAN-W").Return(paid, nil).Once()

		w, _ := serve(t, svc, http.MethodDelete, "/api/v1/loans/LOAN-W/payment/last", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("undo with empty log", func(t *testing.T) {
		svc := mocks.NewMockLedgerService()
		svc.On("UndoLastPayment", mock.Anything, "LOAN-W").
			Return(nil, customError.WrapLedgerError("LOAN-W", customError.ErrNothingToUndo)).Once()

		w, env := serve(t, svc, http.MethodDelete, "/api/v1/loans/LOAN-W/payment/last", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, customError.ErrCodeNothingToUndo, env.Code)
	})

	t.Run("settle shortfall", func(t *testing.T) {
		svc := mocks.NewMockLedgerService()
		svc.On("Settle", mock.Anything, "LOAN-I", mock.Anything).
			Return(nil, customError.WrapLedgerError("LOAN-I", customError.ErrSettlementShortfall)).Once()

		w, env := serve(t, svc, http.MethodPost, "/api/v1/loans/LOAN-I/settle", map[string]interface{}{"amount": 50000, "mode": "cash"})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, customError.ErrCodeSettlementRejected, env.Code)
	})

	t.Run("mark defaulted", func(t *testing.T) {
		svc := mocks.NewMockLedgerService()
		svc.On("MarkDefaulted", mock.Anything, "LOAN-W").Return(&domain.OutstandingResponse{
			LoanID: "LOAN-W",
			State:  domain.LedgerState{Status: domain.LoanStatusDefaulted},
		}, nil).Once()

		w, env := serve(t, svc, http.MethodPost, "/api/v1/loans/LOAN-W/default", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var state domain.OutstandingResponse
		require.NoError(t, json.Unmarshal(env.Data, &state))
		assert.Equal(t, domain.LoanStatusDefaulted, state.State.Status)
	})

	t.Run("preview", func(t *testing.T) {
		svc := mocks.NewMockLedgerService()
		svc.On("PreviewPlan", mock.Anything, mock.Anything).Return(&domain.CreateLoanResponse{}, nil).Once()

		w, _ := serve(t, svc, http.MethodPost, "/api/v1/plans/preview", map[string]interface{}{
			"loan_id": "LOAN-P", "customer_name": "Ravi", "kind": "monthly",
			"principal": 5000, "given_date": "2024-01-01", "anchor_date": "2024-02-01",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})
}
