package ring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"helios/internal/alarm"
	"helios/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultPattern vibrates 800ms on, 400ms off, twice, then repeats.
var DefaultPattern = []time.Duration{
	0,
	800 * time.Millisecond,
	400 * time.Millisecond,
	800 * time.Millisecond,
	400 * time.Millisecond,
}

// Config holds the timing of a ring session.
type Config struct {
	// WakeLockGrace bounds how long the wake lock may be held.
	WakeLockGrace time.Duration
	// Budget is the delivery-time budget after which a session stops itself.
	Budget time.Duration
	// Pattern is the haptic waveform.
	Pattern []time.Duration
	// ReleaseTimeout bounds each release call during teardown.
	ReleaseTimeout time.Duration
}

// Manager owns every live ring session. At most one session is live per
// alarm id.
type Manager struct {
	// Now returns the current time. Tests replace it.
	Now func() time.Time

	alarms   Alarms
	recorder Recorder
	ports    Ports
	config   Config
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup
	done     chan struct{}

	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

func NewManager(alarms Alarms, recorder Recorder, ports Ports, config Config, logger *slog.Logger) *Manager {
	if config.WakeLockGrace <= 0 {
		config.WakeLockGrace = 10 * time.Second
	}
	if config.Budget <= 0 {
		config.Budget = 3 * time.Minute
	}
	if len(config.Pattern) == 0 {
		config.Pattern = DefaultPattern
	}
	if config.ReleaseTimeout <= 0 {
		config.ReleaseTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	meter := otel.Meter("helios/ring")
	return &Manager{
		Now:      time.Now,
		alarms:   alarms,
		recorder: recorder,
		ports:    ports,
		config:   config,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
		outcomes: observability.Counter(meter, "helios.ring.sessions", "Ring sessions by outcome"),
		duration: observability.Histogram(meter, "helios.ring.duration", "Time from fire to teardown"),
	}
}

// Run blocks until ctx is cancelled, then stops every live session and waits
// for their teardown.
func (m *Manager) Run(ctx context.Context) error {
	<-ctx.Done()

	m.mu.Lock()
	m.closed = true
	for _, s := range m.sessions {
		s.stop(OutcomeAborted)
	}
	m.mu.Unlock()

	m.logger.Info("waiting for ring sessions to terminate")
	m.wg.Wait()
	m.cancel()
	close(m.done)
	return ctx.Err()
}

// Done is closed once Run has returned and every session terminated.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// OnTimerFire starts a session for the alarm id carried by payload. It
// returns immediately.
func (m *Manager) OnTimerFire(payload string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.Warn("ring manager stopped, dropping fire", "alarm_id", payload)
		return nil
	}
	if s, ok := m.sessions[payload]; ok {
		m.logger.Info("alarm already ringing", "alarm_id", payload, "session_id", s.ID)
		return s
	}

	s := newSession(uuid.NewString(), payload, m.Now())
	m.sessions[payload] = s
	m.wg.Add(1)
	go m.run(s)
	return s
}

// Dismiss stops the session ringing for alarmID.
func (m *Manager) Dismiss(alarmID string) error {
	m.mu.Lock()
	s, ok := m.sessions[alarmID]
	m.mu.Unlock()
	if !ok {
		return alarm.Errorf(alarm.ErrNotFound, "no alarm is ringing for %s", alarmID)
	}
	s.stop(OutcomeDismissed)
	return nil
}

// DismissAll stops every live session and reports how many this call
// stopped. Sessions already ending for another reason are not counted.
func (m *Manager) DismissAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.stop(OutcomeDismissed) {
			n++
		}
	}
	return n
}

// Abort force-stops the session with the given session id. The platform
// calls it when a session overruns its foreground budget.
func (m *Manager) Abort(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == sessionID {
			m.logger.Warn("aborting ring session", "session_id", sessionID, "alarm_id", s.AlarmID)
			s.stop(OutcomeAborted)
			return
		}
	}
}

// Live returns the sessions that have not terminated yet.
func (m *Manager) Live() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// resources tracks what a session holds so teardown can release it.
type resources struct {
	wakeLock   WakeLock
	foreground bool
	audio      Audio
	haptic     Haptic
	deadline   *time.Timer
	bookkeep   chan struct{}
}

func (m *Manager) run(s *Session) {
	defer m.wg.Done()

	var res resources
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("ring session panicked", "session_id", s.ID, "alarm_id", s.AlarmID, "panic", r)
			s.stop(OutcomeAborted)
		}
		m.teardown(s, &res)
	}()

	m.deliver(s, &res)
}

func (m *Manager) deliver(s *Session, res *resources) {
	ctx := m.ctx
	log := m.logger.With("session_id", s.ID, "alarm_id", s.AlarmID)

	a, err := m.alarms.Lookup(ctx, s.AlarmID)
	if err != nil {
		if !alarm.IsNotFound(err) {
			log.Error("failed to look up fired alarm", "error", err)
		}
		s.stop(OutcomeStale)
		return
	}
	s.setLabel(a.Label)

	if m.ports.WakeLock != nil {
		lock, err := m.ports.WakeLock.Acquire(ctx, m.config.WakeLockGrace)
		if err != nil {
			log.Warn("wake lock unavailable", "error", err)
		} else {
			res.wakeLock = lock
		}
	}
	if m.ports.Foreground != nil {
		if err := m.ports.Foreground.Enter(s.ID, m.config.Budget); err != nil {
			log.Warn("failed to enter foreground", "error", err)
		} else {
			res.foreground = true
		}
	}
	res.deadline = time.NewTimer(m.config.Budget)

	s.setState(StateSounding)
	log.Info("alarm ringing", "label", a.Label)

	if m.ports.Audio != nil {
		audio, err := m.ports.Audio.Start(ctx)
		if err != nil {
			log.Warn("alarm sound unavailable", "error", err)
		} else {
			res.audio = audio
		}
	}
	if m.ports.Haptic != nil {
		haptic, err := m.ports.Haptic.Vibrate(ctx, m.config.Pattern)
		if err != nil {
			log.Warn("vibration unavailable", "error", err)
		} else {
			res.haptic = haptic
		}
	}

	res.bookkeep = make(chan struct{})
	go m.bookkeep(a, res.bookkeep, log)

	select {
	case <-s.stopc:
	case <-res.deadline.C:
		log.Info("delivery budget expired")
		s.stop(OutcomeTimeout)
	}
}

// bookkeep records the fire and consumes the one-shot alarm.
func (m *Manager) bookkeep(a alarm.Alarm, done chan<- struct{}, log *slog.Logger) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			log.Error("ring bookkeeping panicked", "panic", r)
		}
	}()
	ctx := context.WithoutCancel(m.ctx)

	if m.recorder != nil {
		rec := alarm.LastFired{Hour: a.Hour, Minute: a.Minute, Label: a.Label, FiredAt: m.Now()}
		if err := m.recorder.Save(ctx, rec); err != nil {
			log.Error("failed to record last fired alarm", "error", err)
		}
	}
	if err := m.alarms.Consume(ctx, a.ID); err != nil {
		log.Error("failed to consume fired alarm", "error", err)
	}
}

// teardown releases everything the session holds. Every step runs even when
// an earlier one fails; failures are logged, never returned.
func (m *Manager) teardown(s *Session, res *resources) {
	if s.State() == StateSounding {
		s.setState(StateDismissing)
	}

	var errs []error
	if res.audio != nil {
		errs = append(errs, release("stop audio", res.audio.Stop))
		errs = append(errs, release("release audio", res.audio.Release))
	}
	if res.haptic != nil {
		errs = append(errs, release("cancel haptic", res.haptic.Cancel))
	}
	if res.deadline != nil {
		res.deadline.Stop()
	}
	if res.bookkeep != nil {
		<-res.bookkeep
	}
	if res.wakeLock != nil {
		errs = append(errs, release("release wake lock", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), m.config.ReleaseTimeout)
			defer cancel()
			return res.wakeLock.Release(ctx)
		}))
	}
	if res.foreground {
		errs = append(errs, release("exit foreground", func() error {
			return m.ports.Foreground.Exit(s.ID)
		}))
	}

	log := m.logger.With("session_id", s.ID, "alarm_id", s.AlarmID)
	if err := errors.Join(errs...); err != nil {
		log.Warn("ring teardown incomplete", "error", err)
	}

	s.setState(StateTerminated)
	outcome := s.Outcome()

	m.mu.Lock()
	if m.sessions[s.AlarmID] == s {
		delete(m.sessions, s.AlarmID)
	}
	m.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("outcome", string(outcome)))
	m.outcomes.Add(context.Background(), 1, attrs)
	m.duration.Record(context.Background(), m.Now().Sub(s.StartedAt).Seconds(), attrs)
	log.Info("ring session terminated", "outcome", outcome)
	close(s.done)
}

func release(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", step, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	return nil
}
