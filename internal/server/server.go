// Package server exposes every module over HTTP: the finance scrapers, the
// check-in automation, the email queue drain, dynamic DNS, the chat query
// API and the chat WebSocket. Each handler is a thin layer of validation
// and token auth over its module.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cjremmett/webtools/internal/applog"
	"github.com/cjremmett/webtools/internal/bus"
	"github.com/cjremmett/webtools/internal/chat"
	"github.com/cjremmett/webtools/internal/checkin"
	"github.com/cjremmett/webtools/internal/config"
	"github.com/cjremmett/webtools/internal/emailq"
	"github.com/cjremmett/webtools/internal/finance"
)

// Authorizer checks the request token against a module's api_token secret.
type Authorizer interface {
	Authorized(r *http.Request, module string) bool
}

// AccessLogger is the applog surface the server uses.
type AccessLogger interface {
	Append(ctx context.Context, category, level, message string)
	ResourceAccess(ctx context.Context, location, ipAddress string) error
	RecentResourceAccess(ctx context.Context, limit int) ([]applog.AccessRecord, error)
}

type FinanceService interface {
	PriceAndMarketCap(ctx context.Context, ticker string) (string, error)
	FXRateToUSD(ctx context.Context, currency string) (string, error)
}

type EmailDrainer interface {
	DrainUnsent(ctx context.Context) ([]emailq.Message, error)
}

type CheckinService interface {
	ProcessEmail(ctx context.Context, htmlSource, sender string) (checkin.Outcome, error)
	UpdateUser(ctx context.Context, u checkin.UserSettings) error
	SendManualReminders(ctx context.Context) (int, error)
}

type DDNSClient interface {
	Refresh(ctx context.Context, host, domain string) (string, error)
}

type Deps struct {
	Auth    Authorizer
	Log     AccessLogger
	Finance FinanceService
	Emails  EmailDrainer
	Checkin CheckinService
	DDNS    DDNSClient
	History chat.HistoryReader
	Bus     *bus.MessageBus
}

type Server struct {
	cfg  config.ServerConfig
	deps Deps
	srv  *http.Server
}

func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api", s.handleHeartbeat)
	mux.HandleFunc("GET /api/finance/get-stock-price-and-market-cap-gurufocus", s.handleStockPrice)
	mux.HandleFunc("GET /api/finance/get-forex-conversion-google", s.handleFXRate)
	mux.HandleFunc("POST /api/checkin/ioffice-checkin", s.handleCheckin)
	mux.HandleFunc("PUT /api/checkin/user-settings", s.handleCheckinSettings)
	mux.HandleFunc("POST /api/checkin/trigger-manual-reminder", s.handleCheckinReminder)
	mux.HandleFunc("GET /api/checkin/access-logs", s.handleAccessLogs)
	mux.HandleFunc("GET /api/email/get-outgoing-gscript-emails", s.handleOutgoingEmails)
	mux.HandleFunc("GET /api/ddns/update", s.handleDDNSUpdate)
	mux.HandleFunc("GET /api/ai/chat-history", s.handleChatHistory)
	mux.HandleFunc("GET /api/ai/chats", s.handleChatList)
	mux.HandleFunc("/api/ai/ws", s.handleWS)

	s.srv = &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler: s.withAccessLog(mux),
	}
	return s
}

func (s *Server) Start() error {
	log.Printf("[server] listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// withAccessLog records every request before it is handled. A request whose
// access cannot be recorded is refused outright.
func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if err := s.deps.Log.ResourceAccess(r.Context(), r.URL.String(), ip); err != nil {
			log.Printf("[server] access log write failed, refusing request: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStockPrice(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Auth.Authorized(r, "finance_tools") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	ticker := r.URL.Query().Get("ticker")
	if !finance.ValidTicker(ticker) {
		s.deps.Log.Append(r.Context(), "FINANCE", applog.LevelError, "Bad ticker submitted: "+ticker)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	result, err := s.deps.Finance.PriceAndMarketCap(r.Context(), ticker)
	if err != nil {
		s.deps.Log.Append(r.Context(), "FINANCE", applog.LevelError, err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	// Plain text on purpose: the Excel consumer cannot handle JSON.
	fmt.Fprint(w, result)
}

func (s *Server) handleFXRate(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Auth.Authorized(r, "finance_tools") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	currency := r.URL.Query().Get("currency")
	if !finance.ValidCurrency(currency) {
		s.deps.Log.Append(r.Context(), "FINANCE", applog.LevelError, "Bad currency submitted: "+currency)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	rate, err := s.deps.Finance.FXRateToUSD(r.Context(), currency)
	if err != nil {
		s.deps.Log.Append(r.Context(), "FINANCE", applog.LevelError, err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	fmt.Fprint(w, rate)
}

func (s *Server) handleDDNSUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Auth.Authorized(r, "ddns") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if s.deps.DDNS == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	host := r.URL.Query().Get("host")
	domain := r.URL.Query().Get("domain_name")
	if host == "" || domain == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ip, err := s.deps.DDNS.Refresh(r.Context(), host, domain)
	if err != nil {
		s.deps.Log.Append(r.Context(), "DYNAMIC_DNS", applog.LevelError, err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.deps.Log.Append(r.Context(), "DYNAMIC_DNS", applog.LevelInfo,
		fmt.Sprintf("Updated DNS for %s with IP address %s.", domain, ip))
	w.WriteHeader(http.StatusOK)
}

// shutdownTimeout bounds graceful shutdown in Run loops.
const ShutdownTimeout = 10 * time.Second
