package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/startunnel/StarTunnel/app/models"
	"github.com/startunnel/StarTunnel/app/repository"
	"github.com/startunnel/StarTunnel/internal/pkg/subscription"
)

// DefaultInterval is how often the sweeper scans the ledger.
const DefaultInterval = 24 * time.Hour

// reminderWindow is how close to expiry a reminder is sent.
const reminderWindow = 5 * 24 * time.Hour

// Notifier delivers a best-effort message to a user. Delivery failures are
// swallowed by the sweeper; an unreachable user is not a system fault.
type Notifier interface {
	Notify(userID int64, text string) error
}

// Sweeper periodically scans the ledger for expired subscriptions, drives
// the lapse transition and sends expiry/reminder notices.
type Sweeper struct {
	repo     repository.UserAccountRepository
	engine   *subscription.Engine
	notifier Notifier
	interval time.Duration

	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a sweeper with the given scan interval.
func New(repo repository.UserAccountRepository, engine *subscription.Engine, notifier Notifier, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		repo:     repo,
		engine:   engine,
		notifier: notifier,
		interval: interval,
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.stopCh = make(chan struct{})
	s.running = true
	s.ticker = time.NewTicker(s.interval)

	s.wg.Add(1)
	go s.run()

	log.Infof("[Sweeper] Started (interval: %s)", s.interval)
}

// Stop halts the sweep loop and waits for an in-flight cycle to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.ticker.Stop()
	close(s.stopCh)
	s.running = false

	s.wg.Wait()
	log.Info("[Sweeper] Stopped")
}

// run is the single fixed-interval loop; cycles never overlap.
func (s *Sweeper) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.ticker.C:
			s.RunCycle(context.Background(), time.Now().UTC())
		}
	}
}

// RunCycle performs one sweep over all rows with a subscription record.
// A fault on one user never aborts the cycle for the others.
func (s *Sweeper) RunCycle(ctx context.Context, now time.Time) {
	accounts, err := s.repo.ListWithExpiry()
	if err != nil {
		log.Errorf("[Sweeper] ledger scan failed: %v", err)
		return
	}

	for i := range accounts {
		s.sweepUser(ctx, &accounts[i], now)
	}
}

func (s *Sweeper) sweepUser(ctx context.Context, account *models.UserAccount, now time.Time) {
	expiry := *account.SubscriptionExpiry

	if !expiry.After(now) {
		if err := s.engine.Lapse(ctx, account); err != nil {
			log.Errorf("[Sweeper] lapse for user %d failed: %v", account.UserID, err)
			return
		}
		s.notify(account.UserID, "Your subscription has expired. Please purchase a new subscription to continue accessing the VPN.")
		return
	}

	if remaining := expiry.Sub(now); remaining <= reminderWindow {
		days := int(remaining.Hours() / 24)
		s.notify(account.UserID, fmt.Sprintf("Reminder: Your subscription expires in %d days. Renew to keep VPN access.", days))
	}
}

func (s *Sweeper) notify(userID int64, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(userID, text); err != nil {
		log.Debugf("[Sweeper] notification to user %d not delivered: %v", userID, err)
	}
}
