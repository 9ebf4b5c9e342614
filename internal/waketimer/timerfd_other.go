//go:build !linux

package waketimer

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var errUnsupported = errors.New("timerfd wake timer is only available on linux")

type Timerfd struct{}

func NewTimerfd(onFire FireFunc, logger *slog.Logger) (*Timerfd, error) {
	return nil, errUnsupported
}

func (t *Timerfd) Arm(ctx context.Context, slot string, at time.Time, payload string) error {
	return errUnsupported
}

func (t *Timerfd) Disarm(ctx context.Context, slot string) error {
	return errUnsupported
}

func (t *Timerfd) Len() int { return 0 }

func (t *Timerfd) Close() error { return nil }
