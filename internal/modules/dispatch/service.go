// README: Dispatch coordinator; rank, write-ahead assignment, fanout, claim and cancel.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fooddispatch/internal/config"
	"fooddispatch/internal/metrics"
	"fooddispatch/internal/modules/location"
	"fooddispatch/internal/modules/matching"
	"fooddispatch/internal/modules/notify"
	"fooddispatch/internal/modules/order"
	"fooddispatch/internal/types"
)

type Orders interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	GetMerchant(ctx context.Context, id types.ID) (*order.Merchant, error)
	Escalate(ctx context.Context, cmd order.EscalateCommand) error
}

type DriverPool interface {
	Available(ctx context.Context) ([]location.Driver, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address, countryHint string) (types.Point, error)
}

type Ranker interface {
	Rank(ctx context.Context, drivers []location.Driver, delivery types.Point, maxRadiusKm float64) []matching.DriverCandidate
}

type Notifier interface {
	Send(ctx context.Context, m notify.Message) error
}

type Deps struct {
	Store    Store
	Orders   Orders
	Drivers  DriverPool
	Geocoder Geocoder
	Ranker   Ranker
	Notifier Notifier
	Metrics  *metrics.Dispatch
	Clock    Clock
}

type Service struct {
	store    Store
	orders   Orders
	drivers  DriverPool
	geocoder Geocoder
	ranker   Ranker
	notifier Notifier
	metrics  *metrics.Dispatch
	clock    Clock
	cfg      config.DispatchConfig
	log      zerolog.Logger
}

func NewService(deps Deps, cfg config.DispatchConfig, log zerolog.Logger) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock
	}
	return &Service{
		store:    deps.Store,
		orders:   deps.Orders,
		drivers:  deps.Drivers,
		geocoder: deps.Geocoder,
		ranker:   deps.Ranker,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		clock:    clock,
		cfg:      cfg,
		log:      log,
	}
}

// Dispatch offers a confirmed order to the nearest available drivers. On
// success the returned assignment is pending with a non-empty notified list.
func (s *Service) Dispatch(ctx context.Context, orderID types.ID) (*Assignment, error) {
	a, err := s.attempt(ctx, orderID, 1, s.radiusFor(1))
	s.recordOutcome(err)
	if err != nil {
		s.escalate(ctx, orderID, a, err)
		return a, err
	}
	return a, nil
}

// radiusFor grows the search radius linearly with each retry.
func (s *Service) radiusFor(attempt int) float64 {
	return s.cfg.MaxRadiusKm * (1 + s.cfg.RadiusGrowth*float64(attempt-1))
}

func (s *Service) attempt(ctx context.Context, orderID types.ID, attempt int, radiusKm float64) (*Assignment, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: empty order id", ErrNotFound)
	}
	o, err := s.orders.Get(ctx, orderID)
	if errors.Is(err, order.ErrNotFound) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if !o.Status.Dispatchable() {
		return nil, fmt.Errorf("order %s is %s: %w", orderID, o.Status, ErrInvalidState)
	}
	if err := s.ensureNoLiveAssignment(ctx, orderID); err != nil {
		return nil, err
	}

	merchant, err := s.orders.GetMerchant(ctx, o.StoreID)
	if err != nil {
		return nil, fmt.Errorf("load store %s: %w", o.StoreID, err)
	}
	storePos := s.storePosition(ctx, merchant)

	delivery, err := s.geocoder.Geocode(ctx, o.FullDeliveryAddress(), s.cfg.CountryHint)
	if err != nil {
		return nil, fmt.Errorf("delivery address for order %s: %w: %w", orderID, ErrGeocodingFailed, err)
	}

	drivers, err := s.drivers.Available(ctx)
	if err != nil {
		return nil, fmt.Errorf("load driver pool: %w", err)
	}
	started := time.Now()
	ranked := s.ranker.Rank(ctx, drivers, delivery, radiusKm)
	s.metrics.Ranked(time.Since(started))
	if len(ranked) == 0 {
		return nil, fmt.Errorf("order %s within %.1f km: %w", orderID, radiusKm, ErrNoDriversAvailable)
	}
	top := ranked[:min(len(ranked), s.cfg.TopN)]

	now := s.clock.Now()
	a := &Assignment{
		ID:          types.ID(uuid.NewString()),
		OrderID:     o.ID,
		StoreID:     o.StoreID,
		Attempt:     attempt,
		RadiusKm:    radiusKm,
		Candidates:  candidatesFrom(top),
		Notified:    []types.ID{},
		Amount:      o.Total,
		DeliveryFee: o.DeliveryFee,
		Status:      StatusNotifying,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.ClaimWindow),
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}

	// The assignment exists now; a caller going away must not leave it
	// stuck in notifying when the sends already went out.
	ctx = context.WithoutCancel(ctx)

	offer := notify.Offer{
		OrderID:         o.ID,
		AssignmentID:    a.ID,
		StoreName:       merchant.Name,
		StoreAddress:    merchant.Address,
		StorePosition:   storePos,
		DeliveryAddress: o.FullDeliveryAddress(),
		Amount:          o.Total,
		DeliveryFee:     o.DeliveryFee,
		ExpiresAt:       a.ExpiresAt,
	}
	results := s.fanout(ctx, offer, top)
	notified := delivered(results)

	if len(notified) == 0 {
		if err := s.commit(ctx, a, StatusFailed, nil); err != nil {
			return a, err
		}
		return a, fmt.Errorf("order %s, %d candidates: %w", orderID, len(top), ErrNotificationDeliveryFailed)
	}
	if err := s.commit(ctx, a, StatusPending, notified); err != nil {
		return a, err
	}

	s.log.Info().
		Str("order_id", string(orderID)).
		Str("assignment_id", string(a.ID)).
		Int("attempt", attempt).
		Int("candidates", len(top)).
		Int("notified", len(notified)).
		Msg("assignment pending")
	return a, nil
}

// ensureNoLiveAssignment rejects early; Store.Create enforces the same rule
// atomically for open assignments.
func (s *Service) ensureNoLiveAssignment(ctx context.Context, orderID types.ID) error {
	existing, err := s.store.ListByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}
	for _, a := range existing {
		if a.Status.Open() || a.Status == StatusClaimed {
			return fmt.Errorf("order %s already has %s assignment %s: %w", orderID, a.Status, a.ID, ErrInvalidState)
		}
	}
	return nil
}

// storePosition falls back to geocoding only when the store has no stored
// coordinates. The pickup point is informational, so a failure is logged.
func (s *Service) storePosition(ctx context.Context, m *order.Merchant) *types.Point {
	if m.Position != nil {
		return m.Position
	}
	p, err := s.geocoder.Geocode(ctx, m.Address, s.cfg.CountryHint)
	if err != nil {
		s.log.Warn().Err(err).Str("store_id", string(m.ID)).Msg("store geocoding failed")
		return nil
	}
	return &p
}

// commit moves a notifying assignment to its post-fanout status.
func (s *Service) commit(ctx context.Context, a *Assignment, to Status, notified []types.ID) error {
	now := s.clock.Now()
	ok, err := s.store.Transition(ctx, Transition{
		ID:       a.ID,
		From:     StatusNotifying,
		To:       to,
		At:       now,
		Notified: notified,
	})
	if err != nil {
		return fmt.Errorf("commit assignment %s: %w", a.ID, err)
	}
	if !ok {
		current, err := s.store.Get(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("reload assignment %s: %w", a.ID, err)
		}
		*a = *current
		if current.Status == StatusCancelled {
			return fmt.Errorf("assignment %s: %w", a.ID, ErrCancelled)
		}
		return fmt.Errorf("assignment %s moved to %s during fanout: %w", a.ID, current.Status, ErrStoreWriteConflict)
	}
	a.Status = to
	a.UpdatedAt = now
	if notified != nil {
		a.Notified = notified
	}
	return nil
}

// Claim gives the assignment to driverID if it is still open to them.
func (s *Service) Claim(ctx context.Context, assignmentID, driverID types.ID) (*Assignment, error) {
	a, err := s.claim(ctx, assignmentID, driverID)
	s.metrics.Claim(claimResult(err))
	return a, err
}

func (s *Service) claim(ctx context.Context, assignmentID, driverID types.ID) (*Assignment, error) {
	if driverID == "" {
		return nil, fmt.Errorf("%w: empty driver id", ErrNotCandidate)
	}
	a, err := s.store.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if a.ExpiredAt(now) {
		return nil, ErrExpired
	}
	if err := claimable(a.Status); err != nil {
		return nil, err
	}
	if !a.WasNotified(driverID) {
		return nil, ErrNotCandidate
	}

	ok, err := s.store.Transition(ctx, Transition{
		ID:        a.ID,
		From:      StatusPending,
		To:        StatusClaimed,
		At:        now,
		ClaimedBy: &driverID,
		LiveAt:    &now,
	})
	if err != nil {
		return nil, fmt.Errorf("claim assignment %s: %w", a.ID, err)
	}
	if !ok {
		return nil, s.claimConflict(ctx, a.ID, now)
	}

	a.Status = StatusClaimed
	a.ClaimedBy = &driverID
	a.UpdatedAt = now
	s.log.Info().
		Str("order_id", string(a.OrderID)).
		Str("assignment_id", string(a.ID)).
		Str("driver_id", string(driverID)).
		Msg("assignment claimed")
	return a, nil
}

// claimConflict explains a lost compare-and-set from the row's current state.
func (s *Service) claimConflict(ctx context.Context, id types.ID, now time.Time) error {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("reload assignment %s: %w", id, err)
	}
	if current.ExpiredAt(now) {
		return ErrExpired
	}
	if err := claimable(current.Status); err != nil {
		return err
	}
	// Still pending: the store refused for another reason, such as another
	// assignment of the same order already holding the claim.
	return ErrStoreWriteConflict
}

func claimable(status Status) error {
	switch status {
	case StatusPending:
		return nil
	case StatusClaimed:
		return ErrAlreadyClaimed
	case StatusCancelled:
		return ErrCancelled
	case StatusExpired, StatusExhausted:
		return ErrExpired
	default:
		return fmt.Errorf("assignment is %s: %w", status, ErrInvalidState)
	}
}

func claimResult(err error) string {
	switch {
	case err == nil:
		return "claimed"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrNotCandidate):
		return "not_candidate"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Cancel closes every open assignment of the order. Claims arriving after
// Cancel returns fail because claiming requires pending.
func (s *Service) Cancel(ctx context.Context, orderID types.ID) (int, error) {
	existing, err := s.store.ListByOrder(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("list assignments: %w", err)
	}
	now := s.clock.Now()
	cancelled := 0
	for _, a := range existing {
		if !a.Status.Open() {
			continue
		}
		ok, err := s.store.Transition(ctx, Transition{
			ID:   a.ID,
			From: a.Status,
			To:   StatusCancelled,
			At:   now,
		})
		if err != nil {
			return cancelled, fmt.Errorf("cancel assignment %s: %w", a.ID, err)
		}
		if !ok {
			// Lost to a claim or the sweep; re-read to report it honestly.
			current, err := s.store.Get(ctx, a.ID)
			if err != nil {
				return cancelled, fmt.Errorf("reload assignment %s: %w", a.ID, err)
			}
			if current.Status.Open() {
				ok, err = s.store.Transition(ctx, Transition{ID: a.ID, From: current.Status, To: StatusCancelled, At: now})
				if err != nil {
					return cancelled, fmt.Errorf("cancel assignment %s: %w", a.ID, err)
				}
			}
		}
		if ok {
			cancelled++
		}
	}
	if cancelled > 0 {
		s.log.Info().Str("order_id", string(orderID)).Int("cancelled", cancelled).Msg("assignments cancelled")
	}
	return cancelled, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Assignment, error) {
	return s.store.Get(ctx, id)
}

// History lists every attempt made for an order, oldest first.
func (s *Service) History(ctx context.Context, orderID types.ID) ([]Assignment, error) {
	return s.store.ListByOrder(ctx, orderID)
}

func (s *Service) recordOutcome(err error) {
	switch {
	case err == nil:
		s.metrics.Outcome("pending")
	case errors.Is(err, ErrNoDriversAvailable):
		s.metrics.Outcome("no_drivers")
	case errors.Is(err, ErrNotificationDeliveryFailed):
		s.metrics.Outcome("notification_failed")
	case errors.Is(err, ErrGeocodingFailed):
		s.metrics.Outcome("geocoding_failed")
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrNotFound):
		s.metrics.Outcome("rejected")
	default:
		s.metrics.Outcome("error")
	}
}

// escalate hands outcomes that dispatch cannot resolve by itself to order
// management. Escalation failures are logged, never returned.
func (s *Service) escalate(ctx context.Context, orderID types.ID, a *Assignment, cause error) {
	var kind order.EventKind
	switch {
	case errors.Is(cause, ErrNoDriversAvailable):
		kind = order.EventNoDriversAvailable
	case errors.Is(cause, ErrNotificationDeliveryFailed), errors.Is(cause, ErrGeocodingFailed):
		kind = order.EventDispatchFailed
	default:
		return
	}
	s.escalateKind(ctx, orderID, a, kind, cause.Error())
}

func (s *Service) escalateKind(ctx context.Context, orderID types.ID, a *Assignment, kind order.EventKind, reason string) {
	cmd := order.EscalateCommand{OrderID: orderID, Kind: kind, Reason: reason}
	if a != nil {
		id := a.ID
		cmd.AssignmentID = &id
	}
	if err := s.orders.Escalate(context.WithoutCancel(ctx), cmd); err != nil {
		s.log.Error().Err(err).Str("order_id", string(orderID)).Str("kind", string(kind)).Msg("escalation failed")
		return
	}
	s.log.Warn().Str("order_id", string(orderID)).Str("kind", string(kind)).Str("reason", reason).Msg("order escalated")
}
