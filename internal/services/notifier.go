package services

import (
	"context"
	"errors"
)

// MultiNotifier fans an event out to every configured notifier. All of them
// are attempted; their errors are joined.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyPaymentSettled(ctx context.Context, event PaymentSettledEvent) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyPaymentSettled(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
