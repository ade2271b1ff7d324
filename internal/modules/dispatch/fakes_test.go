package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fooddispatch/internal/config"
	"fooddispatch/internal/modules/location"
	"fooddispatch/internal/modules/matching"
	"fooddispatch/internal/modules/notify"
	"fooddispatch/internal/modules/order"
	"fooddispatch/internal/types"
)

var (
	t0       = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dropoff  = types.Point{Lat: 25.0, Lng: 121.5}
	kmPerDeg = 6371 * 3.141592653589793 / 180
)

// north returns the point km kilometres due north of p.
func north(p types.Point, km float64) *types.Point {
	return &types.Point{Lat: p.Lat + km/kmPerDeg, Lng: p.Lng}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeOrders struct {
	mu        sync.Mutex
	orders    map[types.ID]*order.Order
	merchants map[types.ID]*order.Merchant
	events    []order.EscalateCommand
}

func (f *fakeOrders) Get(_ context.Context, id types.ID) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (f *fakeOrders) GetMerchant(_ context.Context, id types.ID) (*order.Merchant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.merchants[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	c := *m
	return &c, nil
}

func (f *fakeOrders) Escalate(_ context.Context, cmd order.EscalateCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, cmd)
	return nil
}

func (f *fakeOrders) setStatus(id types.ID, s order.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[id].Status = s
}

func (f *fakeOrders) escalations() []order.EscalateCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]order.EscalateCommand(nil), f.events...)
}

type fakePool struct {
	drivers []location.Driver
	// onAvailable runs before the pool is read; set it before dispatching.
	onAvailable func()
}

func (p *fakePool) Available(context.Context) ([]location.Driver, error) {
	if p.onAvailable != nil {
		p.onAvailable()
	}
	return p.drivers, nil
}

type fakeGeocoder struct {
	mu     sync.Mutex
	points map[string]types.Point
	calls  []string
}

func (g *fakeGeocoder) Geocode(_ context.Context, address, _ string) (types.Point, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, address)
	p, ok := g.points[address]
	if !ok {
		return types.Point{}, errors.New("zero results")
	}
	return p, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	fail   map[string]bool
	sent   []notify.Message
	onSend func(notify.Message)
}

func (n *fakeNotifier) Send(_ context.Context, m notify.Message) error {
	if n.onSend != nil {
		n.onSend(m)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[m.Token] {
		return errors.New("device unregistered")
	}
	n.sent = append(n.sent, m)
	return nil
}

func (n *fakeNotifier) messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.sent...)
}

type harness struct {
	svc      *Service
	store    *MemoryStore
	orders   *fakeOrders
	pool     *fakePool
	geo      *fakeGeocoder
	notifier *fakeNotifier
	clock    *fakeClock
	cfg      config.DispatchConfig
}

const (
	testOrder = types.ID("o1")
	testStore = types.ID("s1")
)

func driverAt(id string, km, rating float64) location.Driver {
	return location.Driver{
		ID:          types.ID(id),
		Name:        "Driver " + id,
		Position:    north(dropoff, km),
		NotifyToken: "tok-" + id,
		Rating:      rating,
		Available:   true,
	}
}

func newHarness(t *testing.T, drivers ...location.Driver) *harness {
	t.Helper()
	h := &harness{
		store: NewMemoryStore(),
		orders: &fakeOrders{
			orders: map[types.ID]*order.Order{
				testOrder: {
					ID:              testOrder,
					StoreID:         testStore,
					DeliveryAddress: "1 Main St",
					DeliveryCity:    "Springfield",
					Total:           types.Money{Amount: 2599, Currency: "USD"},
					DeliveryFee:     types.Money{Amount: 450, Currency: "USD"},
					Status:          order.StatusConfirmed,
				},
			},
			merchants: map[types.ID]*order.Merchant{
				testStore: {ID: testStore, Name: "Noodle Bar", Address: "9 Market St", Position: north(dropoff, 3)},
			},
		},
		pool: &fakePool{drivers: drivers},
		geo: &fakeGeocoder{points: map[string]types.Point{
			"1 Main St, Springfield": dropoff,
			"9 Market St":            *north(dropoff, 3),
		}},
		notifier: &fakeNotifier{fail: map[string]bool{}},
		clock:    &fakeClock{now: t0},
		cfg:      config.DefaultDispatch(),
	}
	h.rebuild()
	return h
}

// rebuild recreates the service after cfg changes, sharing all collaborators.
func (h *harness) rebuild() {
	h.svc = h.newService()
}

func (h *harness) newService() *Service {
	return NewService(Deps{
		Store:    h.store,
		Orders:   h.orders,
		Drivers:  h.pool,
		Geocoder: h.geo,
		Ranker:   matching.NewRanker(nil, zerolog.Nop()),
		Notifier: h.notifier,
		Clock:    h.clock,
	}, h.cfg, zerolog.Nop())
}
