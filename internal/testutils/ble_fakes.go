package testutils

import (
	"bytes"
	"context"
	"sync"

	"github.com/go-ble/ble"
)

// Advertisement is one AdvertiseNameAndServices call seen by FakeDevice
type Advertisement struct {
	Name     string
	Services []ble.UUID
}

// FakeDevice is a ble.Device that records GATT registration and advertising.
// Methods not overridden here panic through the nil embedded interface.
type FakeDevice struct {
	ble.Device

	mu       sync.Mutex
	services []*ble.Service
	adverts  []Advertisement
	active   int
	stopped  bool

	// AddServiceErr is returned by AddService when set
	AddServiceErr error
	// Advertised receives every advertising call
	Advertised chan Advertisement
}

func NewFakeDevice() *FakeDevice {
	return &FakeDevice{Advertised: make(chan Advertisement, 16)}
}

func (d *FakeDevice) AddService(svc *ble.Service) error {
	if d.AddServiceErr != nil {
		return d.AddServiceErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services = append(d.services, svc)
	return nil
}

func (d *FakeDevice) AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error {
	adv := Advertisement{Name: name, Services: uuids}
	d.mu.Lock()
	d.adverts = append(d.adverts, adv)
	d.active++
	d.mu.Unlock()

	d.Advertised <- adv
	<-ctx.Done()

	d.mu.Lock()
	d.active--
	d.mu.Unlock()
	return ctx.Err()
}

// Stop marks the device stopped and drops the registered services
func (d *FakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.services = nil
	return nil
}

// Services returns the registered services
func (d *FakeDevice) Services() []*ble.Service {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*ble.Service(nil), d.services...)
}

// Characteristic finds a registered characteristic by UUID string
func (d *FakeDevice) Characteristic(uuid string) *ble.Characteristic {
	want := ble.MustParse(uuid)
	for _, svc := range d.Services() {
		for _, c := range svc.Characteristics {
			if c.UUID.Equal(want) {
				return c
			}
		}
	}
	return nil
}

// ActiveAdvertisements returns how many advertising calls are still running
func (d *FakeDevice) ActiveAdvertisements() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Stopped reports whether Stop was called
func (d *FakeDevice) Stopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// FakeConn is a ble.Conn with a remote address and a closable Disconnected channel
type FakeConn struct {
	ble.Conn

	addr ble.Addr
	done chan struct{}
	once sync.Once
}

func NewFakeConn(addr string) *FakeConn {
	return &FakeConn{addr: ble.NewAddr(addr), done: make(chan struct{})}
}

func (c *FakeConn) RemoteAddr() ble.Addr {
	return c.addr
}

func (c *FakeConn) Disconnected() <-chan struct{} {
	return c.done
}

// Drop simulates a link loss
func (c *FakeConn) Drop() {
	c.once.Do(func() { close(c.done) })
}

// FakeRequest is a ble.Request carrying a payload
type FakeRequest struct {
	ble.Request

	conn ble.Conn
	data []byte
}

func NewFakeRequest(conn ble.Conn, data []byte) *FakeRequest {
	return &FakeRequest{conn: conn, data: data}
}

func (r *FakeRequest) Conn() ble.Conn { return r.conn }
func (r *FakeRequest) Data() []byte   { return r.data }
func (r *FakeRequest) Offset() int    { return 0 }

// FakeResponseWriter captures a read or write response
type FakeResponseWriter struct {
	ble.ResponseWriter

	buf    bytes.Buffer
	status ble.ATTError
}

func (w *FakeResponseWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }
func (w *FakeResponseWriter) SetStatus(s ble.ATTError)    { w.status = s }
func (w *FakeResponseWriter) Status() ble.ATTError        { return w.status }
func (w *FakeResponseWriter) Bytes() []byte               { return w.buf.Bytes() }

// FakeNotifier is a ble.Notifier delivering writes to a channel until cancelled
type FakeNotifier struct {
	ble.Notifier

	ctx    context.Context
	cancel context.CancelFunc
	Writes chan []byte
}

func NewFakeNotifier() *FakeNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &FakeNotifier{ctx: ctx, cancel: cancel, Writes: make(chan []byte, 16)}
}

func (n *FakeNotifier) Context() context.Context { return n.ctx }

func (n *FakeNotifier) Write(b []byte) (int, error) {
	v := make([]byte, len(b))
	copy(v, b)
	n.Writes <- v
	return len(b), nil
}

func (n *FakeNotifier) Close() error {
	n.cancel()
	return nil
}

func (n *FakeNotifier) Cap() int { return 20 }
