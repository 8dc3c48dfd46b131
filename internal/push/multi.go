package push

import (
	"context"
	"errors"

	"homeservices/internal/domain"
	"homeservices/internal/models"
)

// MultiPusher fans a notification out to several channels. It fails only when
// every channel failed, so one broken channel does not cause redelivery on the others.
type MultiPusher struct {
	pushers []domain.Pusher
}

func NewMultiPusher(pushers ...domain.Pusher) *MultiPusher {
	out := make([]domain.Pusher, 0, len(pushers))
	for _, p := range pushers {
		if p != nil {
			out = append(out, p)
		}
	}
	return &MultiPusher{pushers: out}
}

func (m *MultiPusher) Push(ctx context.Context, userID int64, n *models.Notification) error {
	var errs []error
	for _, p := range m.pushers {
		if err := p.Push(ctx, userID, n); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 && len(errs) == len(m.pushers) {
		return errors.Join(errs...)
	}
	return nil
}
