package handler

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"presale/internal/allotment"
	"presale/internal/audit"
	"presale/internal/errorlog"
	"presale/internal/geo"
	"presale/internal/kyc"
	"presale/internal/kyc/decision"
	ledgerstore "presale/internal/kyc/ledger/store"
	"presale/internal/kyc/pool"
	poolstore "presale/internal/kyc/pool/store"
	"presale/internal/kyc/verifier"
	"presale/internal/whitelist/mocks"
	"presale/pkg/platform/middleware/metadata"
	"presale/pkg/requestcontext"
	"presale/pkg/testutil"
)

const (
	providerOrigin = "https://regtech.identitymind.store"
	usIP           = "203.0.113.50"
	deIP           = "198.51.100.20"
)

type HandlerSuite struct {
	suite.Suite
	key       *rsa.PrivateKey
	ctrl      *gomock.Controller
	whitelist *mocks.MockClient
	pool      *pool.Service
	ledger    *ledgerstore.InMemoryStore
	auditor   *audit.MemoryPublisher
	errorDir  string
	router    http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupSuite() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	s.key = key
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctrl = gomock.NewController(s.T())
	s.whitelist = mocks.NewMockClient(s.ctrl)
	s.auditor = audit.NewMemoryPublisher()
	s.pool = pool.New(poolstore.NewInMemoryStore(), logger, pool.WithAuditor(s.auditor))
	s.ledger = ledgerstore.NewInMemoryStore()
	s.errorDir = s.T().TempDir()

	sink, err := errorlog.NewFileSink(s.errorDir)
	s.Require().NoError(err)

	registrar, err := allotment.New(s.whitelist, "100", "https://etherscan.io/tx/", logger)
	s.Require().NoError(err)

	h := New(Deps{
		Verifier: verifier.New(verifier.Keys{
			ProviderOrigin: providerOrigin,
			Provider:       &s.key.PublicKey,
		}),
		Processor:    decision.New(s.pool, s.ledger, s.whitelist, logger, decision.WithAuditor(s.auditor)),
		Pool:         s.pool,
		Participants: s.ledger,
		Registrar:    registrar,
		Locator:      geo.Static{usIP: "US", deIP: "DE"},
		ErrorLog:     sink,
		Auditor:      s.auditor,
	}, Forms{
		BaseURL:       "https://regtech.identitymind.store/viewform/",
		GeneralFormID: "9ypwm",
		VIPFormID:     "gxq27",
		ExplorerTxURL: "https://etherscan.io/tx/",
	}, logger)

	r := chi.NewRouter()
	r.Use(metadata.ClientMetadata(nil))
	h.Register(r)
	h.RegisterAdmin(r)
	s.router = r
}

func (s *HandlerSuite) callback(claims jwt.MapClaims) *httptest.ResponseRecorder {
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	s.Require().NoError(err)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/kyc", map[string]string{"jwtresponse": token})
	req.Header.Set("Origin", providerOrigin)
	req.RemoteAddr = deIP + ":4242"
	return testutil.DoRequest(s.router, req)
}

func claimsFor(tid, userID, country, btc string) jwt.MapClaims {
	form := map[string]any{
		"user_id":    userID,
		"country":    country,
		"docCountry": country,
		"email":      "someone@example.com",
	}
	if btc != "" {
		form["btc"] = btc
	}
	return jwt.MapClaims{"tid": tid, "kyc_result": "ACCEPT", "form_data": form}
}

func (s *HandlerSuite) success(rr *httptest.ResponseRecorder) bool {
	s.Require().Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[CallbackResponse](s.T(), rr)
	return resp.Success
}

func (s *HandlerSuite) upload(addrs ...string) {
	body := make([]AddressEntry, len(addrs))
	for i, a := range addrs {
		body[i] = AddressEntry{Address: a}
	}
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/uploadaddr", body))
	s.Require().Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) errorLogFiles() []string {
	entries, err := os.ReadDir(s.errorDir)
	s.Require().NoError(err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (s *HandlerSuite) TestCallback() {
	s.Run("vip outside the US is whitelisted and recorded", func() {
		s.upload("A", "B", "C")
		s.whitelist.EXPECT().AddToWhitelist(gomock.Any(), "B").Return("0xtx", nil)

		rr := s.callback(claimsFor("tid-1", "vip", "de", ""))
		s.True(s.success(rr))
		s.Equal("*", rr.Header().Get("Access-Control-Allow-Origin"))

		rec, err := s.ledger.FindByTransactionID(context.Background(), "tid-1")
		s.Require().NoError(err)
		s.Equal(deIP, rec.SourceAddr)
		s.Equal("DE", rec.AddrCountry)
	})

	s.Run("a redelivery is acknowledged without reprocessing", func() {
		rr := s.callback(claimsFor("tid-1", "vip", "de", ""))
		s.True(s.success(rr))
		s.Equal(1, s.ledger.Len())
	})

	s.Run("a whitelist failure answers success false and is logged", func() {
		s.whitelist.EXPECT().AddToWhitelist(gomock.Any(), "C").Return("", errors.New("gas too low"))

		rr := s.callback(claimsFor("tid-2", "vip", "SG", ""))
		s.False(s.success(rr))
		s.Equal(1, s.ledger.Len())
		s.NotEmpty(s.errorLogFiles())
	})
}

func (s *HandlerSuite) TestCallbackRejectsBadAssertion() {
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claimsFor("tid-x", "vip", "US", "")).SignedString(other)
	s.Require().NoError(err)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/kyc", map[string]string{"jwtresponse": token})
	req.Header.Set("Origin", providerOrigin)
	rr := testutil.DoRequest(s.router, req)

	s.False(s.success(rr))
	s.Equal(0, s.ledger.Len())
	s.Len(s.auditor.ByAction(audit.ActionCallbackFailed), 1)

	files := s.errorLogFiles()
	s.Require().Len(files, 1)
	s.True(strings.HasSuffix(files[0], "_errorLog"))
	content, err := os.ReadFile(filepath.Join(s.errorDir, files[0]))
	s.Require().NoError(err)
	s.Contains(string(content), "kind: verification")
}

func (s *HandlerSuite) TestCallbackPreflight() {
	req := testutil.NewRequest(s.T(), http.MethodOptions, "/kyc")
	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusNoContent, rr.Code)
	s.Equal("*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func (s *HandlerSuite) TestForms() {
	s.Run("GET /kyc redirects to the general form", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/kyc"))
		s.Equal(http.StatusFound, rr.Code)
		s.Equal("/kyc/general", rr.Header().Get("Location"))
	})

	s.Run("general form issues a session", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/kyc/general")
		req.RemoteAddr = deIP + ":1000"
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rr.Code)

		cookies := rr.Result().Cookies()
		s.Require().Len(cookies, 1)
		s.Equal(SessionCookie, cookies[0].Name)
		s.Len(cookies[0].Value, 10)

		resp := testutil.UnmarshalResponse[FormResponse](s.T(), rr)
		s.Equal("https://regtech.identitymind.store/viewform/9ypwm/?user_id="+cookies[0].Value, resp.FormURL)
	})

	s.Run("US callers are blocked", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/kyc/general")
		req.RemoteAddr = usIP + ":1000"
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusForbidden, rr.Code)
		s.JSONEq(`{"error":"region_blocked"}`, rr.Body.String())
		s.Empty(rr.Result().Cookies())
	})

	s.Run("forwarding headers from a direct caller do not lift the block", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/kyc/general")
		req.RemoteAddr = usIP + ":1000"
		req.Header.Set("X-Forwarded-For", deIP)
		req.Header.Set("X-Real-IP", deIP)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusForbidden, rr.Code)
	})

	s.Run("vip form uses the vip submitter", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/kyc/vip"))
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[FormResponse](s.T(), rr)
		s.Equal("https://regtech.identitymind.store/viewform/gxq27/?user_id=vip", resp.FormURL)
	})
}

func (s *HandlerSuite) TestResultLookup() {
	ctx := requestcontext.WithTime(context.Background(), time.Now())
	s.Require().NoError(s.ledger.Record(ctx, &kyc.ParticipantRecord{
		TransactionID: "t-1",
		SubmitterID:   "SESSIONKEY",
		Outcome:       kyc.OutcomeAccept,
		TxHash:        "0xfeed",
	}))
	s.Require().NoError(s.ledger.Record(ctx, &kyc.ParticipantRecord{
		TransactionID: "t-2",
		SubmitterID:   "DENIEDKEY1",
		Outcome:       kyc.OutcomeDeny,
		TxHash:        kyc.NoTransaction,
	}))

	lookup := func(session string) (string, *httptest.ResponseRecorder) {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/result/accept")
		if session != "" {
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: session})
		}
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rr.Code)
		return testutil.UnmarshalResponse[ResultResponse](s.T(), rr).TxURL, rr
	}

	s.Run("recorded transaction links to the explorer", func() {
		txURL, _ := lookup("SESSIONKEY")
		s.Equal("https://etherscan.io/tx/0xfeed", txURL)
	})

	s.Run("no transaction gives an empty link", func() {
		txURL, _ := lookup("DENIEDKEY1")
		s.Empty(txURL)
		s.Empty(s.errorLogFiles())
	})

	s.Run("unknown session is logged for operators", func() {
		txURL, _ := lookup("UNKNOWN")
		s.Empty(txURL)
		s.NotEmpty(s.errorLogFiles())
	})

	s.Run("missing cookie", func() {
		txURL, _ := lookup("")
		s.Empty(txURL)
	})
}

func (s *HandlerSuite) TestUploadAndStats() {
	s.Run("rejects an empty batch", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/admin/uploadaddr", `[]`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("rejects a blank address", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/admin/uploadaddr", `[{"address":"A"},{"address":" "}]`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("rejects malformed JSON", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/admin/uploadaddr", `{"address":"A"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("loads and reports", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/admin/uploadaddr", `[{"address":"A"},{"address":"B"},{"address":"C"}]`)
		rr := testutil.DoRequest(s.router, testutil.WithAdmin(req, "ops"))
		s.Require().Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"success":true}`, rr.Body.String())

		loaded := s.auditor.ByAction(audit.ActionPoolLoaded)
		s.Require().Len(loaded, 1)
		s.Equal("ops", loaded[0].ActorID)

		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/pool"))
		s.Require().Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"total":3,"available":2}`, rr.Body.String())
	})
}

func (s *HandlerSuite) TestRegistration() {
	const holder = "0x4444444444444444444444444444444444444444"

	s.Run("eligible holder receives a transaction link", func() {
		s.whitelist.EXPECT().CheckBalance(gomock.Any(), holder).Return(big.NewInt(250), nil)
		s.whitelist.EXPECT().CheckProRata(gomock.Any(), holder).Return(big.NewInt(1), nil)
		s.whitelist.EXPECT().SetTokenAllotment(gomock.Any(), holder).Return("0xallot", nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/iconiq/registration", RegistrationRequest{EthAddr: holder}))
		s.Require().Equal(http.StatusOK, rr.Code)

		var resp RegistrationResponse
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
		s.True(resp.Eligible)
		s.Equal("https://etherscan.io/tx/0xallot", resp.TxURL)
	})

	s.Run("client failure reads as invalid input", func() {
		s.whitelist.EXPECT().CheckBalance(gomock.Any(), "junk").Return(nil, errors.New("invalid address"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/iconiq/registration", RegistrationRequest{EthAddr: "junk"}))
		s.Equal(http.StatusBadRequest, rr.Code)
		s.JSONEq(`{"error":"invalid address input"}`, rr.Body.String())
	})
}
