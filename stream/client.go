package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dorskfr/bitvavo/api"
	"github.com/dorskfr/bitvavo/internal/messagetracker"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DefaultURL = "wss://ws.bitvavo.com/v2/"

	// authPath is the resource signed by the authenticate action.
	authPath = "/v2/websocket"
)

var (
	ErrNotConnected = errors.New("stream: not connected")
	// ErrStale is returned by ReadMessages when nothing arrived within the
	// stale threshold.
	ErrStale = errors.New("stream: connection stale")
)

// Client is a Bitvavo WebSocket connection. Connect, Authenticate and
// Subscribe perform their handshakes synchronously and must complete before
// ReadMessages is started. Run wraps all of them in a reconnect loop.
type Client struct {
	url             string
	signer          *api.Signer
	accessWindow    time.Duration
	responseTimeout time.Duration
	pingInterval    time.Duration
	staleThreshold  time.Duration
	backoffBase     time.Duration
	backoffMax      time.Duration

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	tracker *messagetracker.MessageTracker
	now     func() time.Time
}

type Option func(*Client)

func WithURL(url string) Option {
	return func(c *Client) { c.url = url }
}

func WithCredentials(key, secret string) Option {
	return func(c *Client) { c.signer = api.NewSigner(key, secret) }
}

// WithSigner shares the signer of a REST client.
func WithSigner(s *api.Signer) Option {
	return func(c *Client) { c.signer = s }
}

func WithAccessWindow(window time.Duration) Option {
	return func(c *Client) { c.accessWindow = window }
}

func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingInterval = d }
}

// WithStaleThreshold sets how long the connection may stay silent before
// ReadMessages gives up on it.
func WithStaleThreshold(d time.Duration) Option {
	return func(c *Client) { c.staleThreshold = d }
}

func WithResponseTimeout(d time.Duration) Option {
	return func(c *Client) { c.responseTimeout = d }
}

// WithBackoff sets the reconnect delay used by Run.
func WithBackoff(base, limit time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = base
		c.backoffMax = limit
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		url:             DefaultURL,
		accessWindow:    api.DefaultAccessWindow,
		responseTimeout: 10 * time.Second,
		pingInterval:    time.Minute,
		staleThreshold:  15 * time.Minute,
		backoffBase:     baseDelay,
		backoffMax:      maxDelay,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tracker = messagetracker.NewMessageTracker(c.url, c.staleThreshold)
	return c
}

func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.responseTimeout}
	header := make(http.Header)
	header.Set("User-Agent", "bitvavo-go/"+api.Version)

	conn, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("%w: error connecting to Bitvavo WebSocket: %w", api.ErrTransport, err)
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil {
		log.Warn().Str("url", c.url).Msg("Replacing open connection")
		old.Close()
	}
	c.tracker.RecordMessage()

	log.Info().Str("url", c.url).Msg("Connected")
	return nil
}

// Disconnect closes the connection. It is safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return
	}

	log.Info().Str("url", c.url).Msg("Disconnecting")
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	conn.Close()
}

func (c *Client) connection() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

type authenticateAction struct {
	Action    string `json:"action"`
	Key       string `json:"key"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	Window    int64  `json:"window"`
}

// Authenticate unlocks the account channel.
func (c *Client) Authenticate(ctx context.Context) error {
	if !c.signer.Valid() {
		return api.ErrMissingCredentials
	}

	ts := c.now().UnixMilli()
	err := c.writeJSON(authenticateAction{
		Action:    "authenticate",
		Key:       c.signer.Key(),
		Signature: c.signer.Sign(ts, http.MethodGet, authPath, nil),
		Timestamp: ts,
		Window:    c.accessWindow.Milliseconds(),
	})
	if err != nil {
		return err
	}

	var rejected bool
	err = c.await(ctx, "authenticate", func(f frame) bool {
		if f.Event != "authenticate" {
			return false
		}
		rejected = !f.Authenticated
		return true
	})
	if err != nil {
		return err
	}
	if rejected {
		return fmt.Errorf("%w: websocket authentication rejected", api.ErrAuthentication)
	}
	log.Info().Str("url", c.url).Msg("Authenticated")
	return nil
}

type subscribeAction struct {
	Action   string         `json:"action"`
	Channels []Subscription `json:"channels"`
}

// Subscribe registers the channels and waits for the exchange to confirm.
func (c *Client) Subscribe(ctx context.Context, subs []Subscription) error {
	if len(subs) == 0 {
		return errors.New("stream: no subscriptions")
	}
	for _, s := range subs {
		if len(s.Markets) == 0 {
			return fmt.Errorf("stream: subscription %q has no markets", s.Name)
		}
		if s.Name == ChannelCandles && len(s.Interval) == 0 {
			return errors.New("stream: candles subscription requires an interval")
		}
	}

	if err := c.writeJSON(subscribeAction{Action: "subscribe", Channels: subs}); err != nil {
		return err
	}
	if err := c.await(ctx, "subscribe", func(f frame) bool { return f.Event == "subscribed" }); err != nil {
		return err
	}

	for _, s := range subs {
		log.Info().Str("channel", string(s.Name)).Strs("markets", s.Markets).Msg("Subscribed")
	}
	return nil
}

// Unsubscribe removes channels. It does not wait for the confirmation, so it
// may be called while ReadMessages is running.
func (c *Client) Unsubscribe(subs []Subscription) error {
	return c.writeJSON(subscribeAction{Action: "unsubscribe", Channels: subs})
}

func (c *Client) writeJSON(v any) error {
	conn := c.connection()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: error writing message: %w", api.ErrTransport, err)
	}
	return nil
}

// frame holds the fields shared by every message.
type frame struct {
	Event         string `json:"event"`
	Action        string `json:"action"`
	ErrorCode     int    `json:"errorCode"`
	Error         string `json:"error"`
	Authenticated bool   `json:"authenticated"`
}

func (f frame) apiError() *api.APIError {
	if f.ErrorCode == 0 && f.Error == "" {
		return nil
	}
	return &api.APIError{Code: f.ErrorCode, Message: f.Error, Action: f.Action}
}

// await reads until done accepts a frame or an error for action arrives.
func (c *Client) await(ctx context.Context, action string, done func(frame) bool) error {
	conn := c.connection()
	if conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(c.responseTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: waiting for %s response: %w", api.ErrTransport, action, ctx.Err())
			}
			return fmt.Errorf("%w: waiting for %s response: %w", api.ErrTransport, action, err)
		}
		c.tracker.RecordMessage()

		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			log.Debug().Err(err).Str("action", action).Msg("Skipping undecodable message")
			continue
		}
		if apiErr := f.apiError(); apiErr != nil && (f.Action == action || f.Action == "") {
			return apiErr
		}
		if done(f) {
			return nil
		}
		log.Debug().Str("event", f.Event).Str("action", action).Msg("Skipping message while awaiting response")
	}
}

// ReadMessages dispatches incoming events to h until the connection fails,
// goes stale or ctx is done.
func (c *Client) ReadMessages(ctx context.Context, h Handler) error {
	conn := c.connection()
	if conn == nil {
		return ErrNotConnected
	}

	staleTicker := time.NewTicker(max(c.staleThreshold/2, time.Millisecond))
	defer staleTicker.Stop()

	pingTicker := time.NewTicker(c.pingInterval)
	defer pingTicker.Stop()

	readChan := make(chan []byte)
	errChan := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				errChan <- err
				return
			}
			select {
			case readChan <- message:
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-staleTicker.C:
			if c.tracker.CheckStaleConnection() {
				return ErrStale
			}
		case <-pingTicker.C:
			if err := c.sendPing(conn); err != nil {
				return err
			}
		case err := <-errChan:
			return fmt.Errorf("%w: error reading message: %w", api.ErrTransport, err)
		case message := <-readChan:
			c.tracker.RecordMessage()
			if err := dispatch(message, h); err != nil {
				log.Error().Err(err).Str("url", c.url).Msg("Error handling message")
				h.onError(err)
			}
		}
	}
}

func (c *Client) sendPing(conn *websocket.Conn) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Warn().Err(err).Str("url", c.url).Msg("Failed to send ping")
		return fmt.Errorf("%w: error sending ping: %w", api.ErrTransport, err)
	}
	return nil
}

func dispatch(message []byte, h Handler) error {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil {
		return fmt.Errorf("%w: error unmarshaling message: %w", api.ErrDecode, err)
	}
	if apiErr := f.apiError(); apiErr != nil {
		h.onError(apiErr)
		return nil
	}

	switch f.Event {
	case "ticker":
		return deliver(message, h.Ticker)
	case "ticker24h":
		if h.Ticker24h == nil {
			return nil
		}
		var ev struct {
			Data []api.Ticker24h `json:"data"`
		}
		if err := json.Unmarshal(message, &ev); err != nil {
			return fmt.Errorf("%w: error unmarshaling ticker24h: %w", api.ErrDecode, err)
		}
		for _, t := range ev.Data {
			h.Ticker24h(t)
		}
		return nil
	case "book":
		return deliver(message, h.Book)
	case "trade":
		return deliver(message, h.Trade)
	case "candle":
		return deliver(message, h.Candle)
	case "order":
		return deliver(message, h.Order)
	case "fill":
		return deliver(message, h.Fill)
	case "subscribed", "unsubscribed", "authenticate":
		log.Debug().Str("event", f.Event).Msg("Control event")
	default:
		log.Debug().Str("event", f.Event).Msg("Ignoring unknown event")
	}
	return nil
}

func deliver[T any](message []byte, fn func(T)) error {
	if fn == nil {
		return nil
	}
	var ev T
	if err := json.Unmarshal(message, &ev); err != nil {
		return fmt.Errorf("%w: error unmarshaling %T: %w", api.ErrDecode, ev, err)
	}
	fn(ev)
	return nil
}

// Run keeps a subscribed session alive until ctx is done, reconnecting with
// exponential backoff. Authentication is performed when credentials are set;
// an authentication failure ends Run since retrying cannot fix it.
func (c *Client) Run(ctx context.Context, subs []Subscription, h Handler) error {
	retry := 0
	for {
		err := c.session(ctx, subs, h, func() { retry = 0 })
		c.Disconnect()

		if ctx.Err() != nil {
			log.Info().Str("url", c.url).Msg("Context cancelled, shutting down stream")
			return nil
		}
		if errors.Is(err, api.ErrAuthentication) {
			return err
		}

		delay := Backoff(retry, c.backoffBase, c.backoffMax)
		log.Warn().Err(err).Int("retry", retry).Dur("delay", delay).Msg("Stream interrupted, reconnecting")
		retry++

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Str("url", c.url).Msg("Context cancelled, shutting down stream")
			return nil
		case <-timer.C:
		}
	}
}

func (c *Client) session(ctx context.Context, subs []Subscription, h Handler, established func()) error {
	log.Info().Str("url", c.url).Msg("Attempting to connect")
	if err := c.Connect(ctx); err != nil {
		return err
	}
	if c.signer.Valid() {
		if err := c.Authenticate(ctx); err != nil {
			return err
		}
	}
	if err := c.Subscribe(ctx, subs); err != nil {
		return err
	}
	established()
	return c.ReadMessages(ctx, h)
}
