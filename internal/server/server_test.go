package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/fault"
	paymentdomain "github.com/smallbiznis/redevance/internal/payment/domain"
	recoverydomain "github.com/smallbiznis/redevance/internal/recovery/domain"
	taxpayerdomain "github.com/smallbiznis/redevance/internal/taxpayer/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTaxpayerService struct {
	taxpayerdomain.Service

	seen actorcontext.Actor
	err  error
}

func (f *fakeTaxpayerService) Get(ctx context.Context, id string) (taxpayerdomain.Taxpayer, error) {
	f.seen, _ = actorcontext.FromContext(ctx)
	if f.err != nil {
		return taxpayerdomain.Taxpayer{}, f.err
	}
	return taxpayerdomain.Taxpayer{LegalName: "Radio Okapi", ZoneCode: "KIN"}, nil
}

type fakePaymentService struct {
	paymentdomain.Service

	recorded *paymentdomain.RecordRequest
}

func (f *fakePaymentService) Record(ctx context.Context, req paymentdomain.RecordRequest) (paymentdomain.Payment, error) {
	f.recorded = &req
	return paymentdomain.Payment{}, nil
}

type fakeRecoveryService struct {
	recoverydomain.Service
}

func (f *fakeRecoveryService) Export(ctx context.Context, w io.Writer) error {
	_, err := w.Write([]byte("PK"))
	return err
}

type fakeAuthz struct {
	allowStaff bool
}

func (f fakeAuthz) Authorize(ctx context.Context, actor actorcontext.Actor, object string, action string) error {
	if f.allowStaff && actor.Role.IsStaff() {
		return nil
	}
	return authorization.ErrForbidden
}

type serverFixture struct {
	taxpayers *fakeTaxpayerService
	payments  *fakePaymentService
	server    *Server
}

func newServerFixture() serverFixture {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	f := serverFixture{
		taxpayers: &fakeTaxpayerService{},
		payments:  &fakePaymentService{},
	}
	f.server = NewServer(ServerParams{
		Gin:         engine,
		TaxpayerSvc: f.taxpayers,
		PaymentSvc:  f.payments,
		RecoverySvc: &fakeRecoveryService{},
		AuthzSvc:    fakeAuthz{allowStaff: true},
	})
	return f
}

func (f serverFixture) do(method, path, role, id, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set(HeaderActorRole, role)
	}
	if id != "" {
		req.Header.Set(HeaderActorID, id)
	}
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestRequestWithoutIdentityIsUnauthenticated(t *testing.T) {
	f := newServerFixture()

	rec := f.do(http.MethodGet, "/api/taxpayers/42", "", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeError(t, rec).Code)
}

func TestUnknownRoleIsUnauthenticated(t *testing.T) {
	f := newServerFixture()

	rec := f.do(http.MethodGet, "/api/taxpayers/42", "superuser", "1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/taxpayers/42", "system", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTaxpayerWithoutIDIsUnauthenticated(t *testing.T) {
	f := newServerFixture()

	rec := f.do(http.MethodGet, "/api/taxpayers/42", "taxpayer", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActorReachesService(t *testing.T) {
	f := newServerFixture()

	rec := f.do(http.MethodGet, "/api/taxpayers/42", "agent", "900", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, actorcontext.RoleAgent, f.taxpayers.seen.Role)
	assert.Equal(t, "900", f.taxpayers.seen.IDString())

	var resp struct {
		Data taxpayerdomain.Taxpayer `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Radio Okapi", resp.Data.LegalName)
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	f := newServerFixture()

	f.taxpayers.err = fault.Unauthorized("not_owner")
	rec := f.do(http.MethodGet, "/api/taxpayers/42", "taxpayer", "41", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_owner", decodeError(t, rec).Code)

	f.taxpayers.err = fault.NotFound("taxpayer_not_found")
	rec = f.do(http.MethodGet, "/api/taxpayers/42", "agent", "900", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "taxpayer_not_found", decodeError(t, rec).Code)
}

func TestMalformedBodyIsRejected(t *testing.T) {
	f := newServerFixture()

	rec := f.do(http.MethodPost, "/api/payments", "cashier", "55", "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Type)
	assert.Nil(t, f.payments.recorded)
}

func TestRecordPaymentBindsBody(t *testing.T) {
	f := newServerFixture()

	rec := f.do(http.MethodPost, "/api/payments", "cashier", "55",
		`{"target_kind":"taxation_note","target_id":"77","amount":"150.00","channel":"bank","reference":"BK-1"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, f.payments.recorded)
	assert.Equal(t, "150.00", f.payments.recorded.Amount)
	assert.Equal(t, "BK-1", f.payments.recorded.Reference)
}

func TestAuditLogsRequireStaff(t *testing.T) {
	f := newServerFixture()

	rec := f.do(http.MethodGet, "/api/audit-logs", "taxpayer", "41", "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeError(t, rec).Code)
}

func TestExportDossiersServesWorkbook(t *testing.T) {
	f := newServerFixture()

	rec := f.do(http.MethodGet, "/admin/dossiers/export", "director", "3", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "dossiers.xlsx")
	assert.Equal(t, "PK", rec.Body.String())
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	f := newServerFixture()

	rec := f.do(http.MethodGet, "/nowhere", "", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitSkippedWithoutLimiter(t *testing.T) {
	f := newServerFixture()

	rec := f.do(http.MethodPost, "/api/payments", "taxpayer", "41",
		`{"target_kind":"taxation_note","target_id":"77","amount":"1","channel":"bank","reference":"R"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
}
