package portal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/coordinator"
	"github.com/muurk/wifiprov/internal/logging"
)

const (
	// ServiceType is the DNS-SD service type a running portal advertises
	ServiceType = "_wifiprov._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	shutdownTimeout = 5 * time.Second
)

var (
	// ErrTimeout is returned by AutoConnect when the portal closes without a
	// successful submission
	ErrTimeout = errors.New("portal session timed out")

	// ErrNoSession is reported to clients that submit while no portal runs
	ErrNoSession = errors.New("no portal session running")
)

// Connector joins Wi-Fi networks on behalf of the portal.
type Connector interface {
	// Connect associates using stored credentials.
	Connect(ctx context.Context) error
	// Join stores new credentials and associates with them.
	Join(ctx context.Context, ssid, password string) error
}

// AccessPointHost is implemented by connectors that can raise the
// provisioning access point for the length of a session.
type AccessPointHost interface {
	StartAccessPoint(ctx context.Context, name string) (stop func() error, err error)
}

// Config configures a Portal.
type Config struct {
	// Addr is the listen address for portal sessions, e.g. ":8080".
	Addr string
	// Timeout closes an idle session. Zero waits until ctx is done.
	Timeout time.Duration
	// Advertise announces running sessions over mDNS.
	Advertise bool
}

// Option configures optional Portal behaviour
type Option func(*Portal)

// WithSessionHook registers fn to run once a session's listener is up.
func WithSessionHook(fn func(addr net.Addr)) Option {
	return func(p *Portal) {
		p.onSession = fn
	}
}

// Portal is a captive-portal style provisioner. It first tries stored
// credentials and otherwise serves a small JSON API where a client submits
// network credentials and parameter values.
type Portal struct {
	cfg       Config
	conn      Connector
	router    http.Handler
	events    *hub
	onSession func(addr net.Addr)

	mu      sync.Mutex
	params  []coordinator.Parameter
	saveCb  func()
	session *session
}

type session struct {
	apName      string
	submissions chan submission
	done        chan struct{}
}

type submission struct {
	req   SaveRequest
	reply chan error
}

// New creates a Portal that joins networks through conn.
func New(cfg Config, conn Connector, opts ...Option) *Portal {
	p := &Portal{
		cfg:    cfg,
		conn:   conn,
		events: newHub(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.router = p.newRouter()
	return p
}

// Handler returns the portal HTTP API. Submissions are only accepted while
// AutoConnect runs a session.
func (p *Portal) Handler() http.Handler {
	return p.router
}

// AddParameter adds or replaces a form field.
func (p *Portal) AddParameter(param coordinator.Parameter) error {
	if param.ID == "" {
		return fmt.Errorf("parameter id must not be empty")
	}
	if param.BufferSize <= 0 {
		param.BufferSize = coordinator.DefaultBufferSize
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.params {
		if p.params[i].ID == param.ID {
			p.params[i] = param
			return nil
		}
	}
	p.params = append(p.params, param)
	return nil
}

// SetSaveCallback installs fn to run after a submission is accepted and
// before the portal joins the submitted network.
func (p *Portal) SetSaveCallback(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saveCb = fn
}

// ParameterValue returns the current value of a registered field.
func (p *Portal) ParameterValue(id string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, param := range p.params {
		if param.ID == id {
			return param.Value, true
		}
	}
	return "", false
}

// Parameters returns a copy of the form fields in registration order.
func (p *Portal) Parameters() []coordinator.Parameter {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]coordinator.Parameter, len(p.params))
	copy(out, p.params)
	return out
}

// Running reports whether a session is accepting submissions.
func (p *Portal) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

// AutoConnect connects with stored credentials, or serves the portal until a
// submission joins a network, the session times out or ctx is done.
func (p *Portal) AutoConnect(ctx context.Context, apName string) error {
	err := p.conn.Connect(ctx)
	if err == nil {
		logging.Info("Connected with stored credentials")
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	logging.Info("Stored credentials unusable, starting portal",
		zap.String("access_point", apName),
		zap.Error(err),
	)
	return p.serve(ctx, apName)
}

func (p *Portal) serve(ctx context.Context, apName string) error {
	sess := &session{
		apName:      apName,
		submissions: make(chan submission),
		done:        make(chan struct{}),
	}

	p.mu.Lock()
	if p.session != nil {
		p.mu.Unlock()
		return fmt.Errorf("portal session already running")
	}
	p.session = sess
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.session = nil
		p.mu.Unlock()
		p.events.closeAll()
	}()

	if host, ok := p.conn.(AccessPointHost); ok {
		stop, err := host.StartAccessPoint(ctx, apName)
		if err != nil {
			logging.Warn("Could not start access point, serving on existing interfaces",
				zap.String("access_point", apName),
				zap.Error(err),
			)
		} else {
			defer func() {
				if err := stop(); err != nil {
					logging.Warn("Stopping access point failed", zap.Error(err))
				}
			}()
		}
	}

	ln, err := net.Listen("tcp", p.cfg.Addr)
	if err != nil {
		close(sess.done)
		return fmt.Errorf("portal listen on %s: %w", p.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           p.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Portal server stopped", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	// Release handlers still waiting to submit before shutting the server down
	defer close(sess.done)

	logging.Info("Portal listening",
		zap.String("access_point", apName),
		zap.String("addr", ln.Addr().String()),
	)

	if p.cfg.Advertise {
		if mdns := p.advertise(apName, ln.Addr()); mdns != nil {
			defer mdns.Shutdown()
		}
	}

	p.events.publish(StatusEvent{State: StatusWaiting, AccessPoint: apName})

	if p.onSession != nil {
		p.onSession(ln.Addr())
	}

	var timeout <-chan time.Time
	if p.cfg.Timeout > 0 {
		timer := time.NewTimer(p.cfg.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			p.events.publish(StatusEvent{State: StatusClosed, AccessPoint: apName})
			return ctx.Err()

		case <-timeout:
			logging.Warn("Portal session timed out", zap.Duration("timeout", p.cfg.Timeout))
			p.events.publish(StatusEvent{State: StatusClosed, AccessPoint: apName})
			return ErrTimeout

		case sub := <-sess.submissions:
			err := p.apply(ctx, apName, sub.req)
			sub.reply <- err
			if err == nil {
				return nil
			}
		}
	}
}

// apply stores submitted values, runs the save callback and joins the
// submitted network
func (p *Portal) apply(ctx context.Context, apName string, req SaveRequest) error {
	p.mu.Lock()
	for i := range p.params {
		if v, ok := req.Values[p.params[i].ID]; ok {
			p.params[i].Value = p.params[i].Accept(v)
		}
	}
	cb := p.saveCb
	p.mu.Unlock()

	p.events.publish(StatusEvent{State: StatusSaving, AccessPoint: apName})
	if cb != nil {
		cb()
	}

	p.events.publish(StatusEvent{State: StatusConnecting, AccessPoint: apName, SSID: req.SSID})
	if err := p.conn.Join(ctx, req.SSID, req.Password); err != nil {
		logging.Warn("Joining submitted network failed",
			zap.String("ssid", req.SSID),
			zap.Error(err),
		)
		p.events.publish(StatusEvent{State: StatusFailed, AccessPoint: apName, SSID: req.SSID, Error: err.Error()})
		return err
	}

	logging.Info("Joined submitted network", zap.String("ssid", req.SSID))
	p.events.publish(StatusEvent{State: StatusConnected, AccessPoint: apName, SSID: req.SSID})
	return nil
}

// submit hands a request to the running session and waits for its result
func (p *Portal) submit(ctx context.Context, req SaveRequest) error {
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()
	if sess == nil {
		return ErrNoSession
	}

	sub := submission{req: req, reply: make(chan error, 1)}
	select {
	case sess.submissions <- sub:
	case <-sess.done:
		return ErrNoSession
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-sub.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Portal) advertise(apName string, addr net.Addr) *zeroconf.Server {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		logging.Warn("Cannot advertise portal", zap.Error(err))
		return nil
	}
	port, _ := strconv.Atoi(portStr)

	txt := []string{"ap=" + apName, "path=/params"}
	server, err := zeroconf.Register(apName, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		logging.Warn("mDNS advertisement failed, portal still reachable by address",
			zap.Error(err),
		)
		return nil
	}
	logging.Debug("Portal advertised",
		zap.String("instance", apName),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return server
}
