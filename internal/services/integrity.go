package services

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"learntrust-backend/internal/ledger"
	"learntrust-backend/internal/models"
)

// Alerter pushes incident notices to connected monitors. The websocket
// hub satisfies it.
type Alerter interface {
	Broadcast(msg interface{})
}

// IntegritySweeper periodically re-verifies the whole audit chain. A
// detected break is an incident: it is logged, the healthy flag drops,
// connected monitors are alerted, and the chain is never auto-repaired.
type IntegritySweeper struct {
	chain    *ledger.Ledger
	alerts   Alerter
	interval time.Duration
	healthy  atomic.Bool
	stopChan chan struct{}
}

func NewIntegritySweeper(chain *ledger.Ledger, alerts Alerter, interval time.Duration) *IntegritySweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	s := &IntegritySweeper{
		chain:    chain,
		alerts:   alerts,
		interval: interval,
		stopChan: make(chan struct{}),
	}
	s.healthy.Store(true)
	return s
}

func (s *IntegritySweeper) Start() {
	go s.loop()
	log.Printf("Audit integrity sweeper started (every %s)", s.interval)
}

func (s *IntegritySweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

// Healthy reports whether the last sweep found the chain intact.
func (s *IntegritySweeper) Healthy() bool {
	return s.healthy.Load()
}

func (s *IntegritySweeper) loop() {
	// Run on startup as well as by interval.
	s.sweep(context.Background())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep(context.Background())
		}
	}
}

func (s *IntegritySweeper) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	report, err := s.chain.VerifyChain(ctx, 0, -1)
	if err != nil {
		log.Printf("integrity sweep: verification failed: %v", err)
		return
	}
	s.record(report)
}

func (s *IntegritySweeper) record(report models.VerifyReport) {
	if !report.Intact {
		s.healthy.Store(false)
		log.Printf("SECURITY INCIDENT: audit chain broken at index %d: %s", *report.BrokenAt, report.Reason)
		if s.alerts != nil {
			s.alerts.Broadcast(models.WSMessage{Type: "chain_incident", Payload: report})
		}
		return
	}

	s.healthy.Store(true)
	log.Printf("integrity sweep: chain intact (%d entries checked)", report.Checked)
}
