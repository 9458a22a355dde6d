// Package session runs one actor per browser session. The actor owns the
// session's cart and checkout flow, so commands for a session are applied
// one at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/checkout"
	"github.com/example/rugstore/pkg/config"
	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/metrics"
	"github.com/example/rugstore/pkg/pricing"
)

type sessionActor struct {
	id      string
	session *checkout.Session
	rules   pricing.Rules
	idle    time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func (a *sessionActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		a.session = checkout.NewSession()
		if a.idle > 0 {
			ctx.SetReceiveTimeout(a.idle)
		}
		a.metrics.SessionStarted()
		a.logger.Debug("Session actor started", zap.String("session_id", a.id))

	case *actor.ReceiveTimeout:
		if a.session.Placing() || a.session.AwaitingPayment() {
			// the timeout is cancelled once it fires
			ctx.SetReceiveTimeout(a.idle)
			return
		}
		a.logger.Debug("Session idle, stopping", zap.String("session_id", a.id))
		ctx.Stop(ctx.Self())

	case *actor.Stopped:
		a.metrics.SessionStopped()
		a.logger.Debug("Session actor stopped", zap.String("session_id", a.id))

	case Command:
		result, err := msg.Apply(a.session, a.rules)
		ctx.Respond(&Reply{Result: result, View: a.session.View(a.rules), Err: err})
	}
}

// Manager routes commands to session actors, spawning them on first use.
type Manager struct {
	system  *actor.ActorSystem
	props   func(id string) *actor.Props
	timeout time.Duration
	logger  *zap.Logger
}

func NewManager(system *actor.ActorSystem, rules pricing.Rules, cfg config.SessionConfig, m *metrics.Metrics, logger *zap.Logger) *Manager {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger = logger.Named("session")
	return &Manager{
		system:  system,
		timeout: timeout,
		logger:  logger,
		props: func(id string) *actor.Props {
			return actor.PropsFromProducer(func() actor.Actor {
				return &sessionActor{
					id:      id,
					rules:   rules,
					idle:    cfg.IdleTimeout,
					metrics: m,
					logger:  logger,
				}
			})
		},
	}
}

func actorName(sessionID string) string {
	return "session-" + sessionID
}

func (m *Manager) pid(sessionID string) (*actor.PID, error) {
	pid, err := m.system.Root.SpawnNamed(m.props(sessionID), actorName(sessionID))
	if err != nil && !errors.Is(err, actor.ErrNameExists) {
		return nil, fmt.Errorf("failed to spawn session actor: %w", err)
	}
	return pid, nil
}

// Do applies cmd to the session and waits for the reply. A session whose
// actor stopped between lookup and delivery is respawned once.
func (m *Manager) Do(ctx context.Context, sessionID string, cmd Command) (Reply, error) {
	const op = "session.Do"
	if sessionID == "" {
		return Reply{}, errs.Validationf(op, "session", "session id is required")
	}

	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return Reply{}, errs.Unavailable(op, context.DeadlineExceeded)
	}

	for attempt := 0; ; attempt++ {
		pid, err := m.pid(sessionID)
		if err != nil {
			return Reply{}, errs.Unavailable(op, err)
		}

		res, err := m.system.Root.RequestFuture(pid, cmd, timeout).Result()
		if errors.Is(err, actor.ErrDeadLetter) && attempt == 0 {
			m.logger.Debug("Session actor gone, respawning", zap.String("session_id", sessionID))
			continue
		}
		if err != nil {
			m.logger.Warn("Session request failed",
				zap.String("session_id", sessionID),
				zap.String("command", fmt.Sprintf("%T", cmd)),
				zap.Error(err))
			return Reply{}, errs.Unavailable(op, fmt.Errorf("session did not respond: %w", err))
		}

		reply, ok := res.(*Reply)
		if !ok {
			return Reply{}, fmt.Errorf("unexpected session reply %T", res)
		}
		return *reply, reply.Err
	}
}

// View returns a copy of the session state.
func (m *Manager) View(ctx context.Context, sessionID string) (checkout.View, error) {
	reply, err := m.Do(ctx, sessionID, &GetView{})
	return reply.View, err
}

// Stop ends a session and discards its cart.
func (m *Manager) Stop(sessionID string) error {
	pid := actor.NewPID(m.system.Address(), actorName(sessionID))
	return m.system.Root.StopFuture(pid).Wait()
}
