package device

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"helios/internal/alarm"
	"helios/internal/ring"
)

// CommandAudio plays the alarm sound by running a player command in a loop,
// e.g. ["paplay", "/usr/share/sounds/freedesktop/stereo/alarm-clock-elapsed.oga"].
type CommandAudio struct {
	Command []string
	// RestartDelay throttles restarts of a player that exits with an error.
	RestartDelay time.Duration

	logger *slog.Logger
}

func NewCommandAudio(command []string, logger *slog.Logger) *CommandAudio {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandAudio{Command: command, RestartDelay: time.Second, logger: logger}
}

var _ ring.AudioPort = (*CommandAudio)(nil)

func (a *CommandAudio) Start(ctx context.Context) (ring.Audio, error) {
	if len(a.Command) == 0 {
		return nil, alarm.Errorf(alarm.ErrResource, "no alarm sound player configured")
	}
	path, err := exec.LookPath(a.Command[0])
	if err != nil {
		return nil, alarm.Wrap(alarm.ErrResource, err, "alarm sound player unavailable")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p := &loopingPlayer{cancel: cancel, done: make(chan struct{})}
	go a.loop(loopCtx, path, p.done)
	return p, nil
}

func (a *CommandAudio) loop(ctx context.Context, path string, done chan<- struct{}) {
	defer close(done)
	for {
		err := exec.CommandContext(ctx, path, a.Command[1:]...).Run()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			a.logger.Warn("alarm sound player failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(a.RestartDelay):
			}
		}
	}
}

type loopingPlayer struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	released bool
}

// Stop kills the player and waits for the loop to exit.
func (p *loopingPlayer) Stop() error {
	p.cancel()
	<-p.done
	return nil
}

// Release frees the player, stopping it first when needed.
func (p *loopingPlayer) Release() error {
	p.mu.Lock()
	released := p.released
	p.released = true
	p.mu.Unlock()
	if released {
		return nil
	}
	return p.Stop()
}
