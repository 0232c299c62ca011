package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muurk/wifiprov/internal/configstore"
	"github.com/muurk/wifiprov/internal/logging"
)

// ErrClosed is returned by AutoConnect after Close
var ErrClosed = errors.New("coordinator closed")

// Option configures a Coordinator
type Option func(*Coordinator)

// WithReconnectInterval spaces automatic reconnect attempts at least d
// apart. Zero keeps them immediate.
func WithReconnectInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// Coordinator registers provisioning parameters, drives the
// connect-or-provision sequence and reconnects after link loss.
type Coordinator struct {
	store  *configstore.Store
	prov   Provisioner
	driver NetworkDriver

	// mu protects the fields below
	mu               sync.Mutex
	state            State
	params           []*Parameter
	onConnect        func()
	onDisconnect     func()
	reconnect        func()
	reconnectEnabled bool
	tokens           []Token
	installed        bool
	closed           bool
	lastSaveErr      error
	attemptSaveErr   error

	// connecting is the re-entrancy latch; set while an attempt runs
	connecting atomic.Bool
	attempts   atomic.Int64

	// saveMu orders a running save before the connect callback
	saveMu sync.Mutex

	limiter *rate.Limiter
}

// New creates a coordinator. store persists parameter values, prov runs the
// portal and driver delivers link events.
func New(store *configstore.Store, prov Provisioner, driver NetworkDriver, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		prov:      prov,
		driver:    driver,
		state:     StateIdle,
		reconnect: func() {},
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns how many connection attempts have actually started
func (c *Coordinator) Attempts() int {
	return int(c.attempts.Load())
}

// Connecting reports whether an attempt is in flight
func (c *Coordinator) Connecting() bool {
	return c.connecting.Load()
}

// LastSaveError returns the result of the most recent portal save
func (c *Coordinator) LastSaveError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSaveErr
}

// Parameters returns a copy of the live parameters in registration order
func (c *Coordinator) Parameters() []Parameter {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Parameter, len(c.params))
	for i, p := range c.params {
		out[i] = *p
	}
	return out
}

// RegisterParameter creates a live parameter seeded with its saved value
// and adds it to the portal. Storage failures while loading saved values are
// logged and ignored so provisioning still works without history.
// Registering an id again replaces the earlier parameter.
func (c *Coordinator) RegisterParameter(id, placeholder string, bufferSize int) (Parameter, error) {
	if id == "" {
		return Parameter{}, fmt.Errorf("parameter id must not be empty")
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	if err := c.store.EnsureLoaded(); err != nil {
		logging.Warn("Could not load saved parameters, using empty defaults",
			zap.String("id", id),
			zap.Error(err),
		)
	}

	p := &Parameter{
		ID:          id,
		Placeholder: placeholder,
		BufferSize:  bufferSize,
	}
	p.Value = p.Accept(c.store.Get(id))

	if err := c.prov.AddParameter(*p); err != nil {
		return Parameter{}, configstore.NewPortalError("add parameter "+id, err)
	}

	c.mu.Lock()
	replaced := false
	for i, existing := range c.params {
		if existing.ID == id {
			c.params[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		c.params = append(c.params, p)
	}
	c.mu.Unlock()

	logging.Debug("Parameter registered",
		zap.String("id", id),
		zap.Int("buffer_size", bufferSize),
		zap.Bool("seeded", p.Value != ""),
		zap.Bool("replaced", replaced),
	)
	return *p, nil
}

// ParameterValue returns the last persisted value for id. It does not load
// the store; register a parameter or call AutoConnect first.
func (c *Coordinator) ParameterValue(id string) string {
	return c.store.Get(id)
}

// OnConnect sets the callback run when the link comes up, replacing any
// previous one
func (c *Coordinator) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

// OnDisconnect sets the callback run when the link goes down, replacing any
// previous one
func (c *Coordinator) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// AutoConnect connects or falls back to the provisioning portal on an access
// point named apName. A failed attempt fires the disconnect callback and is
// retried, so AutoConnect blocks until an attempt succeeds, Erase or Close
// disables reconnection, or ctx is done. Network handlers are installed on
// the first call; later link loss reconnects automatically for as long as
// ctx is alive. A call made while an attempt is in flight does nothing.
//
// The returned error reports a failed portal save and, when the store had
// never been loaded, a failed load. A failed connection attempt is not an
// error; watch the connect callback instead.
func (c *Coordinator) AutoConnect(ctx context.Context, apName string) error {
	if c.connecting.Load() {
		logging.Debug("Connection attempt already in progress, ignoring AutoConnect")
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	c.prov.SetSaveCallback(c.saveParameters)

	if err := c.installHandlers(); err != nil {
		return err
	}

	c.mu.Lock()
	c.reconnect = c.reconnectFunc(ctx, apName)
	c.reconnectEnabled = true
	c.attemptSaveErr = nil
	c.mu.Unlock()

	c.run(ctx, apName)

	c.mu.Lock()
	saveErr := c.attemptSaveErr
	c.attemptSaveErr = nil
	c.mu.Unlock()

	var loadErr error
	if !c.store.Loaded() {
		loadErr = c.store.Load()
	}

	return errors.Join(saveErr, loadErr)
}

// Erase stops automatic reconnection, forgets stored credentials and drops
// the link. An attempt already in flight is not interrupted.
func (c *Coordinator) Erase() error {
	c.mu.Lock()
	c.reconnect = func() {}
	c.reconnectEnabled = false
	prev := c.state
	c.state = StateIdle
	c.mu.Unlock()

	if prev != StateIdle {
		logging.LogStateChange(prev.String(), StateIdle.String())
	}

	forgetErr := c.store.Erase()
	disconnectErr := c.driver.Disconnect()
	if disconnectErr != nil {
		disconnectErr = fmt.Errorf("disconnect: %w", disconnectErr)
	}
	return errors.Join(forgetErr, disconnectErr)
}

// Close unregisters the network handlers. The Coordinator cannot be used to
// connect again afterwards.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	tokens := c.tokens
	c.tokens = nil
	c.closed = true
	c.reconnect = func() {}
	c.reconnectEnabled = false
	c.mu.Unlock()

	for _, tok := range tokens {
		c.driver.Unsubscribe(tok)
	}
	logging.Debug("Network handlers unregistered", zap.Int("count", len(tokens)))
	return nil
}

// installHandlers subscribes to link events once per Coordinator
func (c *Coordinator) installHandlers() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.installed {
		return nil
	}

	up, err := c.driver.Subscribe(EventConnected, c.handleConnected)
	if err != nil {
		return fmt.Errorf("subscribe to connect events: %w", err)
	}
	down, err := c.driver.Subscribe(EventDisconnected, c.handleDisconnected)
	if err != nil {
		c.driver.Unsubscribe(up)
		return fmt.Errorf("subscribe to disconnect events: %w", err)
	}

	c.tokens = []Token{up, down}
	c.installed = true
	logging.Debug("Network handlers installed")
	return nil
}

func (c *Coordinator) reconnectFunc(ctx context.Context, apName string) func() {
	return func() {
		if ctx.Err() != nil {
			logging.Debug("Context done, skipping reconnect")
			return
		}
		if c.connecting.Load() {
			logging.Debug("Reconnect already in progress, dropping event")
			return
		}
		if err := c.limiter.Wait(ctx); err != nil {
			logging.Debug("Reconnect wait aborted", zap.Error(err))
			return
		}
		c.run(ctx, apName)
	}
}

// run attempts to connect until an attempt does not fail. A failed attempt
// fires the disconnect callback and is retried, paced by the limiter, until
// reconnection is disabled or ctx is done.
func (c *Coordinator) run(ctx context.Context, apName string) {
	for c.attempt(ctx, apName) {
		c.mu.Lock()
		cb := c.onDisconnect
		c.mu.Unlock()

		if cb != nil {
			cb()
		}

		c.mu.Lock()
		enabled := c.reconnectEnabled
		c.mu.Unlock()

		if !enabled || ctx.Err() != nil {
			logging.Debug("Not retrying failed attempt")
			return
		}
		if err := c.limiter.Wait(ctx); err != nil {
			logging.Debug("Retry wait aborted", zap.Error(err))
			return
		}
	}
}

// attempt runs one connect-or-provision pass guarded by the latch. It
// reports true when the attempt failed and moved the state to Disconnected;
// the latch is released by then.
func (c *Coordinator) attempt(ctx context.Context, apName string) bool {
	if !c.connecting.CompareAndSwap(false, true) {
		logging.Debug("Connection attempt already in progress")
		return false
	}
	defer c.connecting.Store(false)

	n := c.attempts.Add(1)
	c.setState(StateConnecting)
	logging.Info("Connecting",
		zap.String("access_point", apName),
		zap.Int64("attempt", n),
	)

	err := c.prov.AutoConnect(ctx, apName)
	if err != nil {
		logging.Warn("Connection attempt failed",
			zap.String("access_point", apName),
			zap.Error(err),
		)
		return c.transitionFrom(StateConnecting, StateDisconnected)
	}
	c.transitionFrom(StateConnecting, StateConnected)
	return false
}

func (c *Coordinator) handleConnected() {
	c.saveMu.Lock()
	c.setState(StateConnected)
	c.saveMu.Unlock()

	c.mu.Lock()
	cb := c.onConnect
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (c *Coordinator) handleDisconnected() {
	c.mu.Lock()
	enabled := c.reconnectEnabled
	cb := c.onDisconnect
	reconnect := c.reconnect
	c.mu.Unlock()

	if enabled {
		c.setState(StateDisconnected)
	}

	if cb != nil {
		cb()
	}
	reconnect()
}

// saveParameters is installed as the portal save callback
func (c *Coordinator) saveParameters() {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	params := make([]*Parameter, len(c.params))
	copy(params, c.params)
	c.mu.Unlock()

	values := make([]string, len(params))
	for i, p := range params {
		c.mu.Lock()
		values[i] = p.Value
		c.mu.Unlock()
		if v, ok := c.prov.ParameterValue(p.ID); ok {
			values[i] = p.Accept(v)
		}
	}

	entries := make([]configstore.Entry, len(params))
	c.mu.Lock()
	for i, p := range params {
		p.Value = values[i]
		entries[i] = configstore.Entry{ID: p.ID, Value: values[i]}
	}
	c.mu.Unlock()

	err := c.store.Save(entries)

	c.mu.Lock()
	c.lastSaveErr = err
	if err != nil {
		c.attemptSaveErr = err
	}
	c.mu.Unlock()

	if err != nil {
		logging.Error("Failed to persist portal parameters", zap.Error(err))
		return
	}
	logging.Info("Portal parameters saved", zap.Int("count", len(entries)))
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	if prev != s {
		logging.LogStateChange(prev.String(), s.String())
	}
}

// transitionFrom moves to next only if the state is still from, so link
// events and Erase during an attempt win over the attempt's own result.
// It reports whether the state changed.
func (c *Coordinator) transitionFrom(from, next State) bool {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = next
	c.mu.Unlock()

	logging.LogStateChange(from.String(), next.String())
	return true
}
