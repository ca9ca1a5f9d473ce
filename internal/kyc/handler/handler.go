// Package handler exposes the KYC intake over HTTP: the provider callback,
// the form sessions, the result lookup, token allotment registration and the
// administrative pool endpoints.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"presale/internal/allotment"
	"presale/internal/audit"
	"presale/internal/errorlog"
	"presale/internal/geo"
	"presale/internal/kyc"
	"presale/internal/kyc/decision"
	"presale/internal/kyc/metrics"
	"presale/internal/kyc/pool"
	"presale/internal/platform/secrets"
	"presale/pkg/platform/httputil"
	"presale/pkg/platform/middleware/cors"
	"presale/pkg/platform/sentinel"
	"presale/pkg/requestcontext"
)

const (
	// SessionCookie carries the general-flow session key between the form
	// page and the result lookup.
	SessionCookie    = "kyc_session"
	sessionKeyLength = 10
	regionBlocked    = "region_blocked"
)

// Verifier authenticates callback requests.
type Verifier interface {
	VerifyRequest(r *http.Request) (*kyc.Payload, error)
}

// Processor runs the decision engine.
type Processor interface {
	Process(ctx context.Context, payload *kyc.Payload, sourceAddr string) (*decision.Result, error)
}

// PoolService is the administrative view of the address pool.
type PoolService interface {
	BulkLoad(ctx context.Context, addresses []kyc.Address) error
	Stats(ctx context.Context) (pool.Stats, error)
}

// ParticipantFinder looks up recorded participants.
type ParticipantFinder interface {
	FindBySubmitter(ctx context.Context, submitterID string) (*kyc.ParticipantRecord, error)
}

// Registrar runs token allotment registration.
type Registrar interface {
	Register(ctx context.Context, addr string) (*allotment.Result, error)
}

// Forms locates the provider-hosted forms.
type Forms struct {
	BaseURL       string
	GeneralFormID string
	VIPFormID     string
	ExplorerTxURL string
}

func (f Forms) url(formID, userID string) string {
	return f.BaseURL + formID + "/?user_id=" + url.QueryEscape(userID)
}

// Handler serves the KYC routes.
type Handler struct {
	verifier     Verifier
	processor    Processor
	pool         PoolService
	participants ParticipantFinder
	registrar    Registrar
	locator      geo.Locator
	errorLog     errorlog.Sink
	auditor      audit.Publisher
	metrics      *metrics.Metrics
	forms        Forms
	logger       *slog.Logger
}

// Deps groups the collaborators of a Handler.
type Deps struct {
	Verifier     Verifier
	Processor    Processor
	Pool         PoolService
	Participants ParticipantFinder
	Registrar    Registrar
	Locator      geo.Locator
	ErrorLog     errorlog.Sink
	Auditor      audit.Publisher
	Metrics      *metrics.Metrics
}

// New creates a KYC Handler. A nil Locator disables the region block, a nil
// ErrorLog or Auditor discards, and a nil Registrar answers registration with
// an invalid input error.
func New(deps Deps, forms Forms, logger *slog.Logger) *Handler {
	h := &Handler{
		verifier:     deps.Verifier,
		processor:    deps.Processor,
		pool:         deps.Pool,
		participants: deps.Participants,
		registrar:    deps.Registrar,
		locator:      deps.Locator,
		errorLog:     deps.ErrorLog,
		auditor:      deps.Auditor,
		metrics:      deps.Metrics,
		forms:        forms,
		logger:       logger,
	}
	if h.locator == nil {
		h.locator = geo.Static{}
	}
	if h.errorLog == nil {
		h.errorLog = errorlog.Discard{}
	}
	if h.auditor == nil {
		h.auditor = audit.Discard{}
	}
	return h
}

// Register registers the public routes.
func (h *Handler) Register(r chi.Router) {
	r.With(cors.AllowAnyOrigin).Post("/kyc", h.handleCallback)
	r.With(cors.AllowAnyOrigin).Options("/kyc", func(http.ResponseWriter, *http.Request) {})
	r.Get("/kyc", h.handleFormRedirect)
	r.Get("/kyc/general", h.handleGeneralForm)
	r.Get("/result/accept", h.handleResult)
	r.Post("/iconiq/registration", h.handleRegistration)
}

// RegisterAdmin registers the operator routes. The caller is responsible for
// gating them.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/kyc/vip", h.handleVIPForm)
	r.Post("/admin/uploadaddr", h.handleUploadAddresses)
	r.Get("/admin/pool", h.handlePoolStats)
}

// handleCallback processes the provider's verification callback. Every
// failure is collapsed to {"success": false}.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	payload, err := h.verifier.VerifyRequest(r)
	if err != nil {
		h.metrics.IncrementFailed(kyc.FailureKind(err))
		h.logger.WarnContext(ctx, "kyc callback rejected",
			"request_id", requestID,
			"origin", r.Header.Get("Origin"),
			"error", err,
		)
		h.emit(ctx, audit.Event{
			Action: audit.ActionCallbackFailed,
			Reason: kyc.FailureKind(err),
		})
		h.writeErrorLog(ctx, "kyc_callback", err, map[string]string{
			"kind":   kyc.FailureKind(err),
			"origin": r.Header.Get("Origin"),
		})
		httputil.WriteJSON(w, http.StatusOK, CallbackResponse{Success: false})
		return
	}

	if _, err := h.processor.Process(ctx, payload, requestcontext.ClientIP(ctx)); err != nil {
		h.writeErrorLog(ctx, "kyc_callback", err, map[string]string{
			"kind":           kyc.FailureKind(err),
			"transaction_id": payload.TransactionID,
			"outcome":        string(payload.Outcome),
			"submitter_id":   payload.Form.SubmitterID,
		})
		httputil.WriteJSON(w, http.StatusOK, CallbackResponse{Success: false})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, CallbackResponse{Success: true})
}

func (h *Handler) handleFormRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/kyc/general", http.StatusFound)
}

// handleGeneralForm issues a session key and the general form URL. Callers
// located in the US are turned away; a failed lookup does not block.
func (h *Handler) handleGeneralForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	clientIP := requestcontext.ClientIP(ctx)

	country, err := h.locator.Country(ctx, clientIP)
	if err != nil {
		h.logger.DebugContext(ctx, "geo lookup failed",
			"request_id", requestID,
			"client_ip", clientIP,
			"error", err,
		)
	}
	if kyc.NormalizeCountry(country) == kyc.CountryUS {
		h.logger.InfoContext(ctx, "general form blocked by region",
			"request_id", requestID,
			"client_ip", clientIP,
		)
		httputil.WriteJSON(w, http.StatusForbidden, errorResponse{Error: regionBlocked})
		return
	}

	key, err := secrets.SessionKey(sessionKeyLength)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate session key",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, FormResponse{
		FormURL: h.forms.url(h.forms.GeneralFormID, key),
	})
}

func (h *Handler) handleVIPForm(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FormResponse{
		FormURL: h.forms.url(h.forms.VIPFormID, kyc.SubmitterIDVIP),
	})
}

// handleResult returns the explorer link of the session's whitelist
// transaction. Lookup failures are logged for operators and answered with an
// empty link.
func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txURL, err := h.lookupTxURL(r)
	if err != nil {
		h.logger.WarnContext(ctx, "result lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		h.writeErrorLog(ctx, "result_lookup", err, nil)
	}
	httputil.WriteJSON(w, http.StatusOK, ResultResponse{TxURL: txURL})
}

var errNoSession = errors.New("no kyc session cookie")

func (h *Handler) lookupTxURL(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", errNoSession
	}
	rec, err := h.participants.FindBySubmitter(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", errors.Join(errors.New("no participant for session"), err)
		}
		return "", err
	}
	if !rec.HasTransaction() {
		return "", nil
	}
	return h.forms.ExplorerTxURL + rec.TxHash, nil
}

func (h *Handler) handleRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegistrationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if h.registrar == nil {
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid address input"})
		return
	}

	res, err := h.registrar.Register(ctx, req.EthAddr)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid address input"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RegistrationResponse{
		Eligible: res.Eligible,
		TxURL:    res.TxURL,
	})
}

func (h *Handler) handleUploadAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UploadAddressesRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.pool.BulkLoad(ctx, req.Addresses()); err != nil {
		h.logger.ErrorContext(ctx, "failed to load pool addresses",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CallbackResponse{Success: true})
}

func (h *Handler) handlePoolStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.pool.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read pool stats",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PoolStatsResponse{
		Total:     stats.Total,
		Available: stats.Available,
	})
}

func (h *Handler) writeErrorLog(ctx context.Context, op string, err error, fields map[string]string) {
	if werr := h.errorLog.Write(ctx, errorlog.Entry{
		Time:      requestcontext.Now(ctx),
		Operation: op,
		Err:       err,
		Fields:    fields,
	}); werr != nil {
		h.logger.ErrorContext(ctx, "failed to write error log",
			"request_id", requestcontext.RequestID(ctx),
			"error", werr,
		)
	}
}

func (h *Handler) emit(ctx context.Context, event audit.Event) {
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := h.auditor.Emit(ctx, event); err != nil {
		h.logger.WarnContext(ctx, "failed to emit audit event",
			"request_id", event.RequestID,
			"error", err,
		)
	}
}
