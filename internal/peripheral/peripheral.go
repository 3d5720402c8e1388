// Package peripheral hosts the GATT profile on a go-ble device and translates
// stack callbacks into attribute server events.
//
// Connection lifecycle is taken from the ATT layer: the first request a client
// issues on one of our characteristics (typically the CCCD write subscribing to
// Control Response) marks the link up, and the connection's Disconnected
// channel marks it down. A subscription made after link-up starts with the
// attribute's current value, so a snapshot pushed before the client subscribed
// is not lost. Only one client is served; requests from any other connection
// are refused while a client is attached.
package peripheral

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/servoble/internal/gattserver"
	"github.com/srg/servoble/internal/groutine"
	"github.com/srg/servoble/internal/ringchan"
	"github.com/srg/servoble/pkg/config"
)

var ErrNoSubscriber = errors.New("no subscriber")

// Handler receives link and write events
type Handler interface {
	HandleConnect(remote string) error
	HandleDisconnect(remote string) error
	HandleWrite(data []byte) error
}

// Options configure a Peripheral
type Options struct {
	Name            string
	UUIDs           config.UUIDs
	Readvertise     bool
	NotifyQueueSize int
	Logger          *logrus.Logger
}

// OptionsFromConfig extracts the transport settings from the application config
func OptionsFromConfig(cfg *config.Config, logger *logrus.Logger) Options {
	return Options{
		Name:            cfg.DeviceName,
		UUIDs:           cfg.UUIDs,
		Readvertise:     cfg.Readvertise,
		NotifyQueueSize: cfg.NotifyQueueSize,
		Logger:          logger,
	}
}

type profileUUIDs struct {
	controlService  ble.UUID
	controlRequest  ble.UUID
	controlResponse ble.UUID
	workTimeService ble.UUID
	workTime        ble.UUID
}

func parseUUIDs(ids config.UUIDs) (profileUUIDs, error) {
	var p profileUUIDs
	for _, f := range []struct {
		dst  *ble.UUID
		name string
		val  string
	}{
		{&p.controlService, "control service", ids.ControlService},
		{&p.controlRequest, "control request", ids.ControlRequest},
		{&p.controlResponse, "control response", ids.ControlResponse},
		{&p.workTimeService, "work time service", ids.WorkTimeService},
		{&p.workTime, "work time", ids.WorkTime},
	} {
		u, err := ble.Parse(f.val)
		if err != nil {
			return p, fmt.Errorf("invalid %s UUID %q: %w", f.name, f.val, err)
		}
		*f.dst = u
	}
	return p, nil
}

// subscription is one client's notification stream for an attribute
type subscription struct {
	queue *ringchan.Ring[[]byte]
}

// Peripheral implements gattserver.Notifier over go-ble
type Peripheral struct {
	opts   Options
	uuids  profileUUIDs
	logger *logrus.Logger

	mu        sync.Mutex
	dev       ble.Device
	handler   Handler
	ctx       context.Context
	advCancel context.CancelFunc
	conn      ble.Conn
	remote    string
	values    map[gattserver.Attribute][]byte
	subs      map[gattserver.Attribute]*subscription
}

// New validates the options and prepares the GATT profile
func New(opts Options) (*Peripheral, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Name == "" {
		return nil, fmt.Errorf("device name is required")
	}
	if opts.NotifyQueueSize <= 0 {
		opts.NotifyQueueSize = 1
	}
	uuids, err := parseUUIDs(opts.UUIDs)
	if err != nil {
		return nil, err
	}

	return &Peripheral{
		opts:   opts,
		uuids:  uuids,
		logger: opts.Logger,
		values: make(map[gattserver.Attribute][]byte),
		subs:   make(map[gattserver.Attribute]*subscription),
	}, nil
}

// Services builds the Control and WorkTime services
func (p *Peripheral) Services() []*ble.Service {
	control := ble.NewService(p.uuids.controlService)
	req := control.NewCharacteristic(p.uuids.controlRequest)
	req.HandleWrite(ble.WriteHandlerFunc(p.serveWrite))

	rsp := control.NewCharacteristic(p.uuids.controlResponse)
	rsp.HandleRead(p.readHandler(gattserver.ControlResponse))
	rsp.HandleNotify(p.notifyHandler(gattserver.ControlResponse))

	workTime := ble.NewService(p.uuids.workTimeService)
	wt := workTime.NewCharacteristic(p.uuids.workTime)
	wt.HandleRead(p.readHandler(gattserver.WorkTime))
	wt.HandleNotify(p.notifyHandler(gattserver.WorkTime))

	return []*ble.Service{control, workTime}
}

// Serve registers the profile, advertises and blocks until ctx is cancelled
func (p *Peripheral) Serve(ctx context.Context, handler Handler) error {
	dev, err := DeviceFactory()
	if err != nil {
		return NormalizeError(fmt.Errorf("failed to open BLE device: %w", err))
	}

	for _, svc := range p.Services() {
		if err := dev.AddService(svc); err != nil {
			_ = dev.Stop()
			return NormalizeError(fmt.Errorf("failed to add service %s: %w", svc.UUID, err))
		}
	}

	p.mu.Lock()
	p.dev = dev
	p.handler = handler
	p.ctx = ctx
	p.mu.Unlock()

	p.logger.WithFields(logrus.Fields{
		"name":     p.opts.Name,
		"services": []string{p.uuids.controlService.String(), p.uuids.workTimeService.String()},
	}).Info("GATT profile registered")

	p.startAdvertising()

	<-ctx.Done()

	p.stopAdvertising()
	p.mu.Lock()
	p.dev = nil
	p.handler = nil
	p.mu.Unlock()

	if err := dev.Stop(); err != nil {
		p.logger.WithField("error", err).Warn("Failed to stop BLE device")
	}
	return ctx.Err()
}

// Notify stores value as the attribute's current value and queues it for the subscriber
func (p *Peripheral) Notify(attr gattserver.Attribute, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	p.mu.Lock()
	p.values[attr] = v
	sub := p.subs[attr]
	p.mu.Unlock()

	if sub == nil {
		return fmt.Errorf("%w on %s", ErrNoSubscriber, attr)
	}
	if sub.queue.Send(v) {
		p.logger.WithField("attribute", attr.String()).Debug("Client slow, overwrote oldest queued notification")
	}
	return nil
}

// Value returns the current value of an attribute
func (p *Peripheral) Value(attr gattserver.Attribute) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[attr]
}

// Remote returns the address of the attached client, empty when none
func (p *Peripheral) Remote() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote
}

func (p *Peripheral) serveWrite(req ble.Request, rsp ble.ResponseWriter) {
	if !p.track(req.Conn()) {
		rsp.SetStatus(ble.ErrWriteNotPerm)
		return
	}

	h := p.currentHandler()
	if h == nil {
		rsp.SetStatus(ble.ErrUnlikely)
		return
	}
	if err := h.HandleWrite(req.Data()); err != nil {
		p.logger.WithField("error", err).Warn("Write not delivered")
		rsp.SetStatus(ble.ErrUnlikely)
	}
}

func (p *Peripheral) readHandler(attr gattserver.Attribute) ble.ReadHandler {
	return ble.ReadHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		if !p.track(req.Conn()) {
			rsp.SetStatus(ble.ErrReadNotPerm)
			return
		}
		if _, err := rsp.Write(p.Value(attr)); err != nil {
			p.logger.WithFields(logrus.Fields{"attribute": attr.String(), "error": err}).Warn("Read response truncated")
		}
	})
}

func (p *Peripheral) notifyHandler(attr gattserver.Attribute) ble.NotifyHandler {
	return ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
		ok, fresh := p.admit(req.Conn())
		if !ok {
			return
		}

		// Register before announcing the link so the snapshot pushed on connect finds a subscriber
		sub := &subscription{queue: ringchan.New[[]byte](p.opts.NotifyQueueSize)}
		p.mu.Lock()
		p.subs[attr] = sub
		p.mu.Unlock()

		defer func() {
			p.mu.Lock()
			if p.subs[attr] == sub {
				delete(p.subs, attr)
			}
			p.mu.Unlock()
			stats := sub.queue.Stats()
			p.logger.WithFields(logrus.Fields{
				"attribute":   attr.String(),
				"written":     stats.Written,
				"overwritten": stats.Overwritten,
			}).Debug("Subscription ended")
		}()

		if fresh {
			p.linkUp(req.Conn())
		} else if v := p.Value(attr); len(v) > 0 {
			// The link came up through another attribute; replay what was pushed meanwhile
			sub.queue.Send(v)
		}
		p.logger.WithField("attribute", attr.String()).Debug("Client subscribed")

		for {
			select {
			case <-n.Context().Done():
				return
			case v := <-sub.queue.C():
				if _, err := n.Write(v); err != nil {
					p.logger.WithFields(logrus.Fields{"attribute": attr.String(), "error": err}).Debug("Notification write failed")
				}
			}
		}
	})
}

func (p *Peripheral) currentHandler() Handler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handler
}

// track admits conn and announces it when it is a new client.
// It returns false for requests from a second client.
func (p *Peripheral) track(conn ble.Conn) bool {
	ok, fresh := p.admit(conn)
	if ok && fresh {
		p.linkUp(conn)
	}
	return ok
}

// admit records conn as the attached client. fresh is true when conn was not attached before.
func (p *Peripheral) admit(conn ble.Conn) (ok, fresh bool) {
	if conn == nil {
		return true, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == conn {
		return true, false
	}
	if p.conn != nil {
		p.logger.WithFields(logrus.Fields{
			"remote":  remoteString(conn),
			"current": p.remote,
		}).Warn("Refusing request from a second client")
		return false, false
	}
	p.conn = conn
	p.remote = remoteString(conn)
	return true, true
}

func (p *Peripheral) linkUp(conn ble.Conn) {
	p.mu.Lock()
	remote := p.remote
	handler := p.handler
	p.mu.Unlock()

	p.stopAdvertising()
	groutine.Go(p.ctxOrBackground(), "ble-link-watch", func(ctx context.Context) {
		select {
		case <-conn.Disconnected():
			p.linkDown(conn)
		case <-ctx.Done():
		}
	})

	if handler != nil {
		if err := handler.HandleConnect(remote); err != nil {
			p.logger.WithField("error", err).Warn("Connect event not delivered")
		}
	}
}

func (p *Peripheral) linkDown(conn ble.Conn) {
	p.mu.Lock()
	if p.conn != conn {
		p.mu.Unlock()
		return
	}
	remote := p.remote
	handler := p.handler
	p.conn = nil
	p.remote = ""
	p.mu.Unlock()

	if handler != nil {
		if err := handler.HandleDisconnect(remote); err != nil {
			p.logger.WithField("error", err).Warn("Disconnect event not delivered")
		}
	}

	if p.opts.Readvertise {
		p.startAdvertising()
	} else {
		p.logger.Info("Client gone, not advertising again")
	}
}

func (p *Peripheral) startAdvertising() {
	p.mu.Lock()
	if p.dev == nil || p.ctx == nil || p.advCancel != nil {
		p.mu.Unlock()
		return
	}
	dev := p.dev
	advCtx, cancel := context.WithCancel(p.ctx)
	p.advCancel = cancel
	p.mu.Unlock()

	p.logger.WithField("name", p.opts.Name).Info("Advertising")
	groutine.Go(advCtx, "ble-advertise", func(ctx context.Context) {
		err := dev.AdvertiseNameAndServices(ctx, p.opts.Name, p.uuids.controlService, p.uuids.workTimeService)
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.WithField("error", NormalizeError(err)).Error("Advertising failed")
		}
	})
}

func (p *Peripheral) stopAdvertising() {
	p.mu.Lock()
	cancel := p.advCancel
	p.advCancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.logger.Debug("Advertising stopped")
	}
}

// Advertising reports whether an advertising session is active
func (p *Peripheral) Advertising() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.advCancel != nil
}

func (p *Peripheral) ctxOrBackground() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return context.Background()
	}
	return p.ctx
}

func remoteString(conn ble.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
