package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/messaging"
)

const maxBackoff = 30 * time.Second

// HandlerRegistration binds a message topic to a handler. Several handlers
// may share a topic; each message is offered to all of them in order.
type HandlerRegistration struct {
	Name    string
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine consumes the procurement event topic and dispatches messages to
// registered handlers.
type Engine struct {
	client      messaging.Client
	logger      *zap.Logger
	enabled     bool
	concurrency int
	handlers    map[string][]HandlerRegistration
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	handlers := make(map[string][]HandlerRegistration, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		handlers[r.Topic] = append(handlers[r.Topic], r)
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		client:      p.Client,
		logger:      logger.Named("worker"),
		enabled:     p.Config.Messaging.Enabled && p.Config.Messaging.Workers.Enabled,
		concurrency: p.Config.Messaging.Workers.Concurrency,
		handlers:    handlers,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.Start,
			OnStop:  engine.Stop,
		})
	}),
)

// Start launches the consumer goroutines. It returns immediately.
func (e *Engine) Start(context.Context) error {
	if !e.enabled {
		e.logger.Info("worker engine disabled")
		return nil
	}
	if len(e.handlers) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	concurrency := e.concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	for i := 0; i < concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	e.logger.Info("worker engine started", zap.Int("workers", concurrency), zap.String("topic", e.client.Topic()))
	return nil
}

// Stop cancels consumption and waits for in-flight handlers.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")
		return nil
	}
}

// Dispatch offers msg to every handler registered for its topic. Messages
// without a topic go to the client's default topic.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) error {
	topic := msg.Topic
	if topic == "" {
		topic = e.client.Topic()
	}
	regs, ok := e.handlers[topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", topic))
		return nil
	}

	var errs error
	for _, r := range regs {
		if err := r.Handler(ctx, msg); err != nil {
			e.logger.Error("worker handler failed",
				zap.String("handler", r.Name),
				zap.String("topic", topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			e.logger.Debug("processing message", zap.String("topic", msg.Topic), zap.Int("worker", workerID))
			return e.Dispatch(msgCtx, msg)
		})

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
