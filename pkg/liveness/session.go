package liveness

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultHeartbeatInterval = 10 * time.Second
	defaultTypingInterval    = 2 * time.Second
	defaultPollInterval      = 3 * time.Second
	leaveTimeout             = 5 * time.Second
)

// SessionConfig configures one channel liveness session.
type SessionConfig struct {
	ChannelID string
	// UserID identifies an authenticated client. When set, AnonKey is ignored
	// and typing beats are enabled.
	UserID  string
	AnonKey string

	HeartbeatInterval time.Duration
	TypingInterval    time.Duration
	PollInterval      time.Duration

	// OnRoster and OnTyping receive polled snapshots. Either may be nil;
	// polling only runs when at least one is set.
	OnRoster func(Roster)
	OnTyping func([]RosterUser)

	Logger *zap.Logger
}

// Session keeps one client visibly present in one channel. It sends an
// immediate heartbeat on open and another every heartbeat interval, throttles
// typing beats, and sends exactly one leave on Close no matter how often
// Close is called. Transport failures never stop the loops; they are logged
// and the next tick retries.
type Session struct {
	api    API
	cfg    SessionConfig
	logger *zap.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	throttle *typingThrottle

	closeOnce sync.Once
}

// OpenSession starts the heartbeat loop (and the poll loop when callbacks
// are configured) and returns the running session. The caller must Close it.
func OpenSession(api API, cfg SessionConfig) *Session {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.TypingInterval <= 0 {
		cfg.TypingInterval = defaultTypingInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		api:    api,
		cfg:    cfg,
		logger: cfg.Logger.With(zap.String("channel_id", cfg.ChannelID)),
		ctx:    ctx,
		cancel: cancel,
	}
	s.throttle = newTypingThrottle(cfg.TypingInterval, func() { s.sendTyping(true) })

	s.wg.Add(1)
	go s.heartbeatLoop()

	if cfg.OnRoster != nil || cfg.OnTyping != nil {
		s.wg.Add(1)
		go s.pollLoop()
	}
	return s
}

// SetComposing reports whether the user is currently composing. Rapid true
// toggles collapse into at most one beat per typing interval; false clears
// the indicator immediately and cancels any pending beat.
func (s *Session) SetComposing(composing bool) {
	if s.ctx.Err() != nil {
		return
	}
	// Typing indicators are an authenticated-only feature.
	if s.cfg.UserID == "" {
		return
	}
	if !composing {
		s.throttle.Reset()
		s.sendTyping(false)
		return
	}
	s.throttle.Trigger()
}

// Close stops all loops and sends the leave signal. Safe to call more than
// once; only the first call does anything.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.throttle.Reset()
		s.wg.Wait()

		// The session context is already cancelled, so the leave gets its own.
		ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		defer cancel()
		if err := s.api.Leave(ctx, s.cfg.ChannelID, s.anonKey(), s.cfg.UserID); err != nil {
			s.logger.Debug("leave failed", zap.Error(err))
		}
	})
}

func (s *Session) heartbeatLoop() {
	defer s.wg.Done()

	s.beat()
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.beat()
		}
	}
}

func (s *Session) beat() {
	if err := s.api.Heartbeat(s.ctx, s.cfg.ChannelID, s.anonKey()); err != nil {
		s.logger.Debug("heartbeat failed", zap.Error(err))
	}
}

func (s *Session) sendTyping(typing bool) {
	if s.ctx.Err() != nil {
		return
	}
	if err := s.api.TypingBeat(s.ctx, s.cfg.ChannelID, typing); err != nil {
		s.logger.Debug("typing beat failed", zap.Error(err), zap.Bool("typing", typing))
	}
}

func (s *Session) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *Session) poll() {
	if s.cfg.OnRoster != nil {
		roster, err := s.api.ListOnline(s.ctx, s.cfg.ChannelID)
		if err != nil {
			s.logger.Debug("roster poll failed", zap.Error(err))
		} else {
			s.cfg.OnRoster(*roster)
		}
	}
	if s.cfg.OnTyping != nil {
		typing, err := s.api.ListTyping(s.ctx, s.cfg.ChannelID)
		if err != nil {
			s.logger.Debug("typing poll failed", zap.Error(err))
		} else {
			s.cfg.OnTyping(typing)
		}
	}
}

func (s *Session) anonKey() string {
	if s.cfg.UserID != "" {
		return ""
	}
	return s.cfg.AnonKey
}
