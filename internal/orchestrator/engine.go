package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aaaa47080/stock-agent-sub002/internal/codebook"
	"github.com/aaaa47080/stock-agent-sub002/internal/hitl"
	"github.com/aaaa47080/stock-agent-sub002/internal/llm"
	"github.com/aaaa47080/stock-agent-sub002/internal/logging"
	"github.com/aaaa47080/stock-agent-sub002/internal/registry"
	"github.com/aaaa47080/stock-agent-sub002/internal/session"
)

// Config tunes the engine. Zero values take the defaults below.
type Config struct {
	DefaultWorker    string
	StepTimeout      time.Duration
	MaxClarifyRounds int
	MaxRetries       int
}

func (c Config) withDefaults() Config {
	if c.DefaultWorker == "" {
		c.DefaultWorker = "chat"
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 120 * time.Second
	}
	if c.MaxClarifyRounds <= 0 {
		c.MaxClarifyRounds = 3
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	return c
}

// Engine drives the state machine. With a Gateway attached, user questions
// block inline and Run returns only terminal outcomes; without one, the run
// checkpoints and suspends whenever it needs an answer, and Resume continues
// it — possibly in a different process.
type Engine struct {
	llm         llm.Client
	registry    *registry.CapabilityRegistry
	resources   *registry.ResourceRegistry
	sessions    session.Store
	codebook    *codebook.Store
	checkpoints CheckpointStore
	gateway     hitl.Gateway
	logger      *logging.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	cfg         Config
}

// Options collects the engine's optional collaborators.
type Options struct {
	Resources   *registry.ResourceRegistry
	Codebook    *codebook.Store
	Checkpoints CheckpointStore
	Gateway     hitl.Gateway
	Logger      *logging.Logger
	Metrics     *Metrics
	Config      Config
}

// New builds an engine. The client, registry and session store are required.
func New(client llm.Client, reg *registry.CapabilityRegistry, sessions session.Store, opts Options) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("orchestrator: llm client is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("orchestrator: worker registry is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("orchestrator: session store is required")
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = defaultMetrics()
	}
	checkpoints := opts.Checkpoints
	if checkpoints == nil {
		checkpoints = NewMemoryCheckpointStore()
	}

	return &Engine{
		llm:         client,
		registry:    reg,
		resources:   opts.Resources,
		sessions:    sessions,
		codebook:    opts.Codebook,
		checkpoints: checkpoints,
		gateway:     opts.Gateway,
		logger:      logging.OrNop(opts.Logger).WithComponent("orchestrator"),
		metrics:     metrics,
		tracer:      otel.Tracer("stock-agent/orchestrator"),
		cfg:         opts.Config.withDefaults(),
	}, nil
}

// Run starts a fresh run for the query. A new query silently abandons any
// checkpoint the session still holds.
func (e *Engine) Run(ctx context.Context, sessionID, query string) (*Outcome, error) {
	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state := &State{
		SessionID:    sess.ID,
		Query:        query,
		WorkingQuery: query,
		Node:         NodeClassify,
	}
	if err := e.checkpoints.Delete(ctx, sess.ID); err != nil && !errors.Is(err, ErrCheckpointNotFound) {
		e.logger.Warn("stale checkpoint cleanup failed", "session_id", sess.ID, "error", err)
	}
	return e.drive(ctx, state, sess)
}

// Resume feeds the answer into a suspended run and drives it onward.
func (e *Engine) Resume(ctx context.Context, sessionID, answer string) (*Outcome, error) {
	state, err := e.checkpoints.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrCheckpointNotFound) {
			return nil, fmt.Errorf("no suspended run for session %s: %w", sessionID, err)
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state.Answer = answer
	state.Pending = nil
	return e.drive(ctx, state, sess)
}

func (e *Engine) loadSession(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.New(sessionID), nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// drive advances the machine until it reaches a terminal node or must
// suspend for user input.
func (e *Engine) drive(ctx context.Context, state *State, sess *session.Session) (*Outcome, error) {
	ctx = logging.ContextWithSessionID(ctx, state.SessionID)
	ctx, span := e.tracer.Start(ctx, "orchestrator.drive",
		trace.WithAttributes(
			attribute.String("session.id", state.SessionID),
			attribute.String("node.start", string(state.Node)),
		))
	defer span.End()

	e.metrics.runsActive.Inc()
	defer e.metrics.runsActive.Dec()
	started := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, question, err := e.step(ctx, state, sess)
		if err != nil {
			e.metrics.ObserveRun("error", time.Since(started))
			return nil, err
		}

		if question != nil {
			if e.gateway != nil {
				answer, askErr := e.gateway.Ask(ctx, *question)
				if askErr != nil {
					e.metrics.ObserveRun("error", time.Since(started))
					return nil, fmt.Errorf("gateway: %w", askErr)
				}
				state.Answer = answer
				state.Node = next
				continue
			}
			state.Node = next
			state.Pending = question
			if err := e.checkpoints.Save(ctx, state); err != nil {
				e.metrics.ObserveRun("error", time.Since(started))
				return nil, fmt.Errorf("save checkpoint: %w", err)
			}
			e.metrics.ObserveRun(StatusSuspended, time.Since(started))
			span.SetAttributes(attribute.String("node.suspend", string(next)))
			return &Outcome{
				SessionID: state.SessionID,
				Status:    StatusSuspended,
				Question:  question,
			}, nil
		}

		if next == NodeDone || next == NodeCancelled {
			if err := e.checkpoints.Delete(ctx, state.SessionID); err != nil && !errors.Is(err, ErrCheckpointNotFound) {
				e.logger.Warn("checkpoint cleanup failed", "session_id", state.SessionID, "error", err)
			}
			status := StatusDone
			if next == NodeCancelled {
				status = StatusCancelled
			}
			e.metrics.ObserveRun(status, time.Since(started))
			return &Outcome{
				SessionID: state.SessionID,
				Status:    status,
				Response:  state.Response,
			}, nil
		}

		state.Node = next
	}
}

// step executes the current node once.
func (e *Engine) step(ctx context.Context, state *State, sess *session.Session) (Node, *hitl.Question, error) {
	switch state.Node {
	case NodeClassify:
		return e.classify(ctx, state, sess)
	case NodeClarify:
		return e.clarify(state), nil, nil
	case NodePlan:
		return e.plan(ctx, state)
	case NodeConfirm:
		next, q := e.confirm(state)
		return next, q, nil
	case NodeConfirmDecision:
		next, err := e.confirmDecision(ctx, state)
		return next, nil, err
	case NodeExecute:
		return e.execute(ctx, state, sess)
	case NodeSynthesize:
		return e.synthesize(ctx, state), nil, nil
	case NodeSaveMessages:
		return e.saveMessages(ctx, state, sess), nil, nil
	case NodeExtractMemory:
		return e.extractMemory(ctx, state, sess), nil, nil
	case NodeAskSatisfaction:
		next, q := e.askSatisfaction(state)
		return next, q, nil
	case NodeSatisfactionDecision:
		return e.satisfactionDecision(state), nil, nil
	case NodeSaveCodebook:
		return e.saveCodebook(ctx, state), nil, nil
	case NodeDone, NodeCancelled:
		return state.Node, nil, nil
	default:
		return NodeDone, nil, fmt.Errorf("unknown node %q", state.Node)
	}
}
