// Package bitvavotest runs an in-process imitation of the Bitvavo REST and
// WebSocket API for tests. Signatures are verified independently of the
// client's signer.
package bitvavotest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	Key    = "test-key"
	Secret = "test-secret"

	ServerTime int64 = 1700000000000
)

// Request is a REST call received by the server.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

type Server struct {
	*httptest.Server

	mu          sync.Mutex
	requests    []Request
	rateLimit   *rateLimitHeaders
	failures    map[string]int
	bookNonce   int64
	conns       map[*wsConn]struct{}
	subscribed  chan []string
	unsubscribe chan []string
	subscribeN  int
	authRequest int
	muted       bool
}

type rateLimitHeaders struct {
	remaining int
	resetAt   time.Time
}

func NewServer() *Server {
	s := &Server{
		failures:    make(map[string]int),
		bookNonce:   1000,
		conns:       make(map[*wsConn]struct{}),
		subscribed:  make(chan []string, 16),
		unsubscribe: make(chan []string, 16),
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

// URL is the REST base URL, including the /v2 prefix.
func (s *Server) URL() string {
	return s.Server.URL + "/v2"
}

func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http") + "/v2/"
}

func (s *Server) Close() {
	s.DropConnections()
	s.Server.Close()
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) LastRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}
	}
	return s.requests[len(s.requests)-1]
}

// SetRateLimit makes every response carry the given rate-limit headers.
func (s *Server) SetRateLimit(remaining int, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimit = &rateLimitHeaders{remaining: remaining, resetAt: resetAt}
}

// FailNext makes the next n requests to path answer 503.
func (s *Server) FailNext(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = n
}

func (s *Server) SetBookNonce(nonce int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookNonce = nonce
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.record)

	v2 := r.PathPrefix("/v2").Subrouter()
	v2.HandleFunc("/", s.serveWS)
	v2.HandleFunc("/time", s.handleTime).Methods(http.MethodGet)
	v2.HandleFunc("/assets", s.handleAssets).Methods(http.MethodGet)
	v2.HandleFunc("/markets", s.handleMarkets).Methods(http.MethodGet)
	v2.HandleFunc("/ticker/price", s.handleTicker(tickerPriceJSON)).Methods(http.MethodGet)
	v2.HandleFunc("/ticker/book", s.handleTicker(tickerBookJSON)).Methods(http.MethodGet)
	v2.HandleFunc("/ticker/24h", s.handleTicker(ticker24hJSON)).Methods(http.MethodGet)

	private := v2.NewRoute().Subrouter()
	private.Use(s.authenticate)
	private.HandleFunc("/account", s.static(accountJSON)).Methods(http.MethodGet)
	private.HandleFunc("/account/fees", s.static(feesJSON)).Methods(http.MethodGet)
	private.HandleFunc("/balance", s.static(balanceJSON)).Methods(http.MethodGet)
	private.HandleFunc("/deposit", s.static(depositInfoJSON)).Methods(http.MethodGet)
	private.HandleFunc("/depositHistory", s.static(depositHistoryJSON)).Methods(http.MethodGet)
	private.HandleFunc("/withdrawalHistory", s.static(withdrawalHistoryJSON)).Methods(http.MethodGet)
	private.HandleFunc("/withdrawal", s.handleWithdraw).Methods(http.MethodPost)
	private.HandleFunc("/order", s.handlePlaceOrder).Methods(http.MethodPost)
	private.HandleFunc("/order", s.handleGetOrder).Methods(http.MethodGet)
	private.HandleFunc("/order", s.handleCancelOrder).Methods(http.MethodDelete)
	private.HandleFunc("/ordersOpen", s.static("["+orderJSON+"]")).Methods(http.MethodGet)
	private.HandleFunc("/orders", s.static(`[{"orderId":"`+OrderID+`"}]`)).Methods(http.MethodDelete)

	v2.HandleFunc("/{market}/book", s.handleBook).Methods(http.MethodGet)
	v2.HandleFunc("/{market}/trades", s.handleTrades).Methods(http.MethodGet)
	v2.HandleFunc("/{market}/candles", s.handleCandles).Methods(http.MethodGet)

	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}

		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		if rl := s.rateLimit; rl != nil {
			w.Header().Set("Bitvavo-Ratelimit-Remaining", strconv.Itoa(rl.remaining))
			w.Header().Set("Bitvavo-Ratelimit-Resetat", strconv.FormatInt(rl.resetAt.UnixMilli(), 10))
		}
		fail := s.failures[r.URL.Path]
		if fail > 0 {
			s.failures[r.URL.Path] = fail - 1
		}
		s.mu.Unlock()

		if fail > 0 {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Bitvavo-Access-Key")
		sig := r.Header.Get("Bitvavo-Access-Signature")
		ts := r.Header.Get("Bitvavo-Access-Timestamp")
		if key == "" || sig == "" || ts == "" {
			writeError(w, http.StatusForbidden, 300, "Authentication is required for this endpoint.")
			return
		}
		if key != Key {
			writeError(w, http.StatusForbidden, 305, "No active API key found.")
			return
		}

		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		path := r.URL.Path
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}
		if !hmac.Equal([]byte(sig), []byte(Sign(ts, r.Method, path, string(body)))) {
			writeError(w, http.StatusForbidden, 309, "The signature is invalid.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sign is the reference Bitvavo signature, used to check what clients send.
func Sign(timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(Secret))
	mac.Write([]byte(timestamp + method + path + body))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Server) static(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeRaw(w, http.StatusOK, body)
	}
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"time": ServerTime})
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeRaw(w, http.StatusOK, "["+assetBTCJSON+","+assetEURJSON+"]")
		return
	}
	switch symbol {
	case "BTC":
		writeRaw(w, http.StatusOK, assetBTCJSON)
	case "EUR":
		writeRaw(w, http.StatusOK, assetEURJSON)
	default:
		writeError(w, http.StatusBadRequest, 205, "symbol parameter is invalid.")
	}
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	market := r.URL.Query().Get("market")
	if market == "" {
		writeRaw(w, http.StatusOK, "["+marketBTCJSON+","+marketETHJSON+"]")
		return
	}
	switch market {
	case "BTC-EUR":
		writeRaw(w, http.StatusOK, marketBTCJSON)
	case "ETH-EUR":
		writeRaw(w, http.StatusOK, marketETHJSON)
	default:
		writeError(w, http.StatusBadRequest, 205, "market parameter is invalid.")
	}
}

func (s *Server) handleTicker(all string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		market := r.URL.Query().Get("market")
		if market == "" {
			writeRaw(w, http.StatusOK, all)
			return
		}
		var items []map[string]any
		if err := json.Unmarshal([]byte(all), &items); err != nil {
			writeError(w, http.StatusInternalServerError, 101, err.Error())
			return
		}
		for _, item := range items {
			if item["market"] == market {
				writeJSON(w, http.StatusOK, item)
				return
			}
		}
		writeError(w, http.StatusBadRequest, 205, "market parameter is invalid.")
	}
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	market := mux.Vars(r)["market"]
	if !knownMarket(market) {
		writeError(w, http.StatusBadRequest, 205, "market parameter is invalid.")
		return
	}
	bids := [][]string{{"30000", "1.5"}, {"29990", "0.25"}, {"29980", "4"}}
	asks := [][]string{{"30010", "0.8"}, {"30020", "2"}, {"30030", "0.1"}}
	if depth, err := strconv.Atoi(r.URL.Query().Get("depth")); err == nil && depth > 0 {
		bids = bids[:min(depth, len(bids))]
		asks = asks[:min(depth, len(asks))]
	}

	s.mu.Lock()
	nonce := s.bookNonce
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"market": market,
		"nonce":  nonce,
		"bids":   bids,
		"asks":   asks,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if !knownMarket(mux.Vars(r)["market"]) {
		writeError(w, http.StatusBadRequest, 205, "market parameter is invalid.")
		return
	}
	writeRaw(w, http.StatusOK, tradesJSON)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	if !knownMarket(mux.Vars(r)["market"]) {
		writeError(w, http.StatusBadRequest, 205, "market parameter is invalid.")
		return
	}
	if r.URL.Query().Get("interval") == "" {
		writeError(w, http.StatusBadRequest, 203, "interval parameter is required.")
		return
	}
	writeRaw(w, http.StatusOK, candlesJSON)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, 107, "Body is not valid JSON.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "symbol": req.Symbol, "amount": req.Amount})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, 107, "Body is not valid JSON.")
		return
	}
	if !knownMarket(req["market"]) {
		writeError(w, http.StatusBadRequest, 205, "market parameter is invalid.")
		return
	}
	resp := map[string]any{
		"orderId":   OrderID,
		"market":    req["market"],
		"created":   ServerTime,
		"updated":   ServerTime,
		"status":    "new",
		"side":      req["side"],
		"orderType": req["orderType"],
	}
	for _, k := range []string{"clientOrderId", "amount", "price"} {
		if v, ok := req[k]; ok {
			resp[k] = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("orderId") != OrderID {
		writeError(w, http.StatusNotFound, 240, "No order found.")
		return
	}
	writeRaw(w, http.StatusOK, orderJSON)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("orderId")
	if id != OrderID {
		writeError(w, http.StatusNotFound, 240, "No order found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"orderId": id})
}

func knownMarket(v any) bool {
	return v == "BTC-EUR" || v == "ETH-EUR"
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{"errorCode": code, "error": message})
}
