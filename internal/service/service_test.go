package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"kitchenprint/internal/database"
	"kitchenprint/internal/events"
	"kitchenprint/internal/models"
	"kitchenprint/internal/routing"
	"kitchenprint/internal/ticket"
	"kitchenprint/internal/transport"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu     sync.Mutex
	sent   map[string][][]byte
	fail   map[string]error
	probes map[string]bool
	// onSend runs before the send is recorded; a non-nil error fails the send.
	onSend func(ctx context.Context) error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: map[string][][]byte{}, fail: map[string]error{}, probes: map[string]bool{}}
}

func (f *fakeTransport) Send(ctx context.Context, frame []byte, target transport.Target) error {
	if f.onSend != nil {
		if err := f.onSend(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[target.Host]; ok {
		return err
	}
	f.sent[target.Host] = append(f.sent[target.Host], frame)
	return nil
}

func (f *fakeTransport) Probe(_ context.Context, target transport.Target) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes[target.Host]
}

func (f *fakeTransport) sentTo(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent[host])
}

type testEnv struct {
	db       *database.DB
	net      *fakeTransport
	bus      *events.EventBus
	seenMu   sync.Mutex
	seen     []string
	devices  *DeviceService
	dispatch *DispatchService
	agent    *AgentService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{db: db, net: newFakeTransport(), bus: events.NewEventBus()}
	env.bus.SubscribeJobs(func(e *events.Event) error {
		env.seenMu.Lock()
		env.seen = append(env.seen, e.Type)
		env.seenMu.Unlock()
		return nil
	})

	registry := transport.NewRegistry()
	registry.Register(models.PrinterTypeNetwork, env.net)

	env.devices = NewDeviceService(db, time.Minute, &logger)
	env.dispatch = NewDispatchService(db, db, registry, env.bus,
		routing.NewResolver(routing.Options{}), ticket.NewRenderer(ticket.DefaultLabels()), time.Second, &logger)
	env.agent = NewAgentService(db, env.devices, env.bus, 0, &logger)
	return env
}

func (e *testEnv) printer(t *testing.T, p *models.Printer) *models.Printer {
	t.Helper()
	if p.TenantID == 0 {
		p.TenantID = 1
	}
	if p.Type == "" {
		p.Type = models.PrinterTypeNetwork
	}
	if p.Name == "" {
		p.Name = p.IPAddress
	}
	p.IsActive = true
	require.NoError(t, e.db.CreatePrinter(context.Background(), p))
	return p
}

func (e *testEnv) device(t *testing.T, tenantID int64) (*models.PrintDevice, string) {
	t.Helper()
	d, token, err := e.devices.Register(context.Background(), tenantID, 0, "kitchen-pc", "")
	require.NoError(t, err)
	return d, token
}

func (e *testEnv) eventCount(eventType string) int {
	e.seenMu.Lock()
	defer e.seenMu.Unlock()
	n := 0
	for _, s := range e.seen {
		if s == eventType {
			n++
		}
	}
	return n
}

func testOrder(orderID int64, categories ...int64) *models.Order {
	o := &models.Order{TenantID: 1, OrderID: orderID, Number: "42", Table: "7"}
	for _, c := range categories {
		o.Items = append(o.Items, models.OrderItem{CategoryID: c, Name: "Dish", Qty: 1, Price: 10})
	}
	return o
}

var errOffline = errors.New("dial tcp 10.0.0.9:9100: connect: connection refused")
