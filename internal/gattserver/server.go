// Package gattserver implements the attribute server of the peripheral: the
// single-client connection state, the Control request/response exchange and
// the periodic WorkTime report.
//
// All state is owned by the goroutine running Server.Run. Transport callbacks
// only enqueue events (HandleConnect, HandleDisconnect, HandleWrite), so the
// connected flag and the actuators are never mutated from two goroutines.
package gattserver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/servoble/internal/command"
	"github.com/srg/servoble/internal/state"
	"github.com/srg/servoble/internal/telemetry"
)

// Attribute identifies a characteristic of the GATT profile
type Attribute int

const (
	ControlRequest Attribute = iota
	ControlResponse
	WorkTime
)

func (a Attribute) String() string {
	switch a {
	case ControlRequest:
		return "control-request"
	case ControlResponse:
		return "control-response"
	case WorkTime:
		return "work-time"
	default:
		return fmt.Sprintf("attribute(%d)", int(a))
	}
}

// Notifier sets an attribute value and notifies subscribed clients.
// An error means the value was not delivered; the server never retries.
type Notifier interface {
	Notify(attr Attribute, value []byte) error
}

// Actuator is what the server reads snapshots from and dispatches commands to
type Actuator interface {
	state.Reader
	command.Actuator
}

var ErrServerStopped = errors.New("attribute server stopped")

// EventType enumerates transport events
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventWritten
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventWritten:
		return "written"
	default:
		return "unknown"
	}
}

// Event is delivered by the transport to the executor
type Event struct {
	Type   EventType
	Remote string
	Data   []byte
}

// Options configure a Server. Zero values fall back to defaults.
type Options struct {
	LineA          int
	LineB          int
	ReportInterval time.Duration
	PollInterval   time.Duration
	QueueSize      int
	Clock          telemetry.Clock
	Logger         *logrus.Logger
}

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultQueueSize    = 32
)

// Server is the connection context of the peripheral
type Server struct {
	notifier   Notifier
	actuator   Actuator
	dispatcher *command.Dispatcher
	reporter   *telemetry.Reporter
	clock      telemetry.Clock
	lineA      int
	lineB      int
	poll       time.Duration
	logger     *logrus.Logger

	events  chan Event
	stopped chan struct{}
	running atomic.Bool

	// executor-owned
	connected bool
	remote    string

	connectedFlag atomic.Bool
	pushes        atomic.Int64
}

// New creates a server pushing through notifier and driving actuator
func New(notifier Notifier, actuator Actuator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Clock == nil {
		opts.Clock = telemetry.NewSystemClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	return &Server{
		notifier:   notifier,
		actuator:   actuator,
		dispatcher: command.NewDispatcher(actuator, opts.Logger),
		reporter:   telemetry.NewReporter(opts.ReportInterval),
		clock:      opts.Clock,
		lineA:      opts.LineA,
		lineB:      opts.LineB,
		poll:       opts.PollInterval,
		logger:     opts.Logger,
		events:     make(chan Event, opts.QueueSize),
		stopped:    make(chan struct{}),
	}
}

// Connected reports whether a client is attached. Safe from any goroutine.
func (s *Server) Connected() bool {
	return s.connectedFlag.Load()
}

// Pushes returns the number of notifications handed to the transport
func (s *Server) Pushes() int64 {
	return s.pushes.Load()
}

// HandleConnect queues a link-established event
func (s *Server) HandleConnect(remote string) error {
	return s.enqueue(Event{Type: EventConnected, Remote: remote})
}

// HandleDisconnect queues a link-lost event
func (s *Server) HandleDisconnect(remote string) error {
	return s.enqueue(Event{Type: EventDisconnected, Remote: remote})
}

// HandleWrite queues a write on the Control Request attribute. data is copied.
func (s *Server) HandleWrite(data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	return s.enqueue(Event{Type: EventWritten, Data: buf})
}

func (s *Server) enqueue(ev Event) error {
	select {
	case <-s.stopped:
		return ErrServerStopped
	default:
	}

	select {
	case s.events <- ev:
		return nil
	case <-s.stopped:
		return ErrServerStopped
	}
}

// Run is the executor loop. It returns when ctx is cancelled and may be called once.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("attribute server already running")
	}
	defer close(s.stopped)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	s.logger.WithFields(logrus.Fields{
		"report_interval": s.reporter.Interval,
		"poll_interval":   s.poll,
	}).Info("Attribute server started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Attribute server stopped")
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ev)
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Server) handle(ev Event) {
	switch ev.Type {
	case EventConnected:
		s.onConnect(ev.Remote)
	case EventDisconnected:
		s.onDisconnect(ev.Remote)
	case EventWritten:
		s.onWrite(ev.Data)
	default:
		s.logger.WithField("type", int(ev.Type)).Warn("Dropping unknown event")
	}
}

func (s *Server) onConnect(remote string) {
	if s.connected {
		s.logger.WithFields(logrus.Fields{
			"remote":  remote,
			"current": s.remote,
		}).Warn("Client already connected, ignoring connect event")
		return
	}

	s.setConnected(true, remote)
	s.logger.WithField("remote", remote).Info("Client connected")

	// Best effort: the client usually has not subscribed yet
	s.pushState()
}

func (s *Server) onDisconnect(remote string) {
	if !s.connected {
		s.logger.WithField("remote", remote).Debug("Disconnect while not connected, ignoring")
		return
	}

	s.logger.WithField("remote", s.remote).Info("Client disconnected")
	s.setConnected(false, "")
}

func (s *Server) onWrite(data []byte) {
	cmd, err := command.Decode(data)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"len":   len(data),
			"error": err,
		}).Warn("Discarding malformed command")
		return
	}

	res, err := s.dispatcher.Dispatch(cmd)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"opcode": cmd.Opcode.String(),
			"error":  err,
		}).Error("Actuator command failed")
	} else {
		s.logger.WithFields(logrus.Fields{
			"opcode": cmd.Opcode.String(),
			"result": res.String(),
		}).Debug("Command dispatched")
	}

	// The snapshot is the only response a client gets, whatever the outcome
	s.pushState()
}

func (s *Server) tick() {
	seconds, due := s.reporter.Poll(s.clock.Uptime())
	if !due {
		return
	}
	if !s.connected {
		return
	}
	s.push(WorkTime, telemetry.EncodeSeconds(seconds), logrus.Fields{"seconds": seconds})
}

func (s *Server) pushState() {
	if !s.connected {
		s.logger.Debug("Not connected, skipping state push")
		return
	}
	snap := state.Encode(s.actuator, s.lineA, s.lineB)
	s.push(ControlResponse, snap.Bytes(), logrus.Fields{"state": snap.String()})
}

func (s *Server) push(attr Attribute, value []byte, fields logrus.Fields) {
	s.pushes.Add(1)
	log := s.logger.WithFields(fields).WithField("attribute", attr.String())
	if err := s.notifier.Notify(attr, value); err != nil {
		log.WithField("error", err).Debug("Notification dropped")
		return
	}
	log.Debug("Notification sent")
}

func (s *Server) setConnected(connected bool, remote string) {
	s.connected = connected
	s.remote = remote
	s.connectedFlag.Store(connected)
}
