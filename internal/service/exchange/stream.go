package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"TradeFlow/internal/domain/models"
	"TradeFlow/pkg/logger"
	"TradeFlow/pkg/util"
)

// Config is the per-exchange connection setup.
type Config struct {
	URL               string
	APIKey            string
	APISecret         string
	Symbols           []string
	OrderBook         bool
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	HeartbeatTimeout  time.Duration
	PingInterval      time.Duration
}

func (c *Config) setDefaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.MaxReconnectDelay < c.ReconnectDelay {
		c.MaxReconnectDelay = time.Minute
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 20 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
}

// wsStream is the reconnecting websocket loop shared by connectors.
type wsStream struct {
	market models.Market
	cfg    Config
	health *Health
	log    *logger.Logger
	dialer *websocket.Dialer
	now    func() time.Time
}

func newWSStream(market models.Market, cfg Config, health *Health, l *logger.Logger) wsStream {
	cfg.setDefaults()
	return wsStream{
		market: market,
		cfg:    cfg,
		health: health,
		log:    l.With(logger.String("market", string(market))),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		now:    time.Now,
	}
}

type session struct {
	name string
	url  string
	// primary sessions drive the market's health record
	primary bool
	// handshake runs right after dialing, before the heartbeat starts
	handshake func(ctx context.Context, conn *websocket.Conn) error
	onMessage func(ctx context.Context, msg []byte) error
}

// run blocks until ctx is done, reconnecting with capped exponential backoff.
func (s *wsStream) run(ctx context.Context, sess session) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		connected, err := s.serve(ctx, sess)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			attempt = 0
		}
		attempt++
		if sess.primary {
			s.health.Disconnected(s.market, err)
			s.health.Reconnecting(s.market)
		}
		delay := util.Backoff(s.cfg.ReconnectDelay, s.cfg.MaxReconnectDelay, attempt)
		s.log.Warn("stream disconnected, reconnecting",
			logger.String("stream", sess.name),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *wsStream) serve(ctx context.Context, sess session) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, sess.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	conn.SetReadLimit(1 << 20)
	if sess.handshake != nil {
		_ = conn.SetReadDeadline(s.now().Add(s.cfg.HeartbeatTimeout))
		if err := sess.handshake(ctx, conn); err != nil {
			return false, err
		}
	}
	if sess.primary {
		s.health.Connected(s.market)
	}
	s.log.Info("stream connected", logger.String("stream", sess.name))

	heartbeat := func() { _ = conn.SetReadDeadline(s.now().Add(s.cfg.HeartbeatTimeout)) }
	heartbeat()
	conn.SetPongHandler(func(string) error {
		heartbeat()
		return nil
	})

	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, s.now().Add(5*time.Second)); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		heartbeat()
		if err := sess.onMessage(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true, err
			}
			s.log.Debug("message dropped", logger.String("stream", sess.name), logger.Error(err))
		}
	}
}

// emitTicks sends normalized ticks downstream and records them in health.
func (s *wsStream) emitTicks(ctx context.Context, ticks []*models.Tick, out chan<- *models.Tick) error {
	for _, t := range ticks {
		s.health.Observe(t)
		select {
		case out <- t:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
