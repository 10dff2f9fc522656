package services

import (
	"log"
	"time"

	"gorm.io/gorm"

	"lapak/internal/models"
	"lapak/internal/repositories"
	"lapak/pkg/rabbitmq"
)

// ReservationSweeper is the scheduled compensation job for abandoned
// checkouts: orders left PENDING past the TTL still hold reserved stock, so
// the sweep cancels them and releases the reservations. It runs off the hot
// path, on its own ticker.
type ReservationSweeper struct {
	db        *gorm.DB
	orders    repositories.OrderRepository
	ledger    repositories.InventoryLedger
	publisher EventPublisher

	ttl      time.Duration
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewReservationSweeper creates a sweeper that cancels orders pending longer
// than ttl, checking every interval.
func NewReservationSweeper(
	db *gorm.DB,
	orders repositories.OrderRepository,
	ledger repositories.InventoryLedger,
	publisher EventPublisher,
	ttl, interval time.Duration,
) *ReservationSweeper {
	return &ReservationSweeper{
		db:        db,
		orders:    orders,
		ledger:    ledger,
		publisher: publisher,
		ttl:       ttl,
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the sweep loop in a goroutine until Stop is called.
func (s *ReservationSweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := s.SweepOnce(); err != nil {
					log.Printf("Reservation sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("Reservation sweep released %d stale order(s)", n)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *ReservationSweeper) Stop() {
	close(s.stop)
	<-s.done
}

// SweepOnce cancels every order that has been PENDING longer than the TTL,
// each in its own transaction so one bad row cannot wedge the whole sweep.
// Returns the number of orders released.
func (s *ReservationSweeper) SweepOnce() (int, error) {
	cutoff := time.Now().Add(-s.ttl)
	stale, err := s.orders.ListPendingBefore(cutoff)
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range stale {
		order := &stale[i]
		err := s.db.Transaction(func(tx *gorm.DB) error {
			// Re-read: a webhook may have settled the order since the list.
			current, err := s.orders.WithTx(tx).GetByID(order.ID)
			if err != nil {
				return err
			}
			if current.Status != models.StatusPending {
				return nil
			}
			*order = *current
			return cancelPendingOrder(tx, s.orders, s.ledger, order)
		})
		if err != nil {
			log.Printf("Failed to sweep order %s: %v", order.ID, err)
			continue
		}
		if order.Status == models.StatusCancelled {
			released++
			publishOrderEvent(s.publisher, rabbitmq.OrderEventsQueue, "order.cancelled", order)
		}
	}
	return released, nil
}
