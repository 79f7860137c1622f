package reactive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const recomputeTimeout = 10 * time.Second

var (
	ErrEngineStopped = errors.New("subscription engine stopped")
	ErrNoExecutor    = errors.New("subscription engine has no executor")
)

// Engine tracks live subscriptions and their data dependencies. Every
// committed mutation reports the dependency keys it touched; the engine
// recomputes exactly the subscriptions registered on those keys and pushes
// a new result only when it differs from the last one delivered.
//
// Each subscription is recomputed on its own goroutine, so fan-out never
// blocks the mutating call and delivery stays ordered per subscription.
type Engine struct {
	mu     sync.Mutex
	exec   Executor
	logger *zap.Logger

	subs    map[string]*subscription
	index   map[string]map[string]*subscription // dep key -> sub id -> sub
	stopped bool
	wg      sync.WaitGroup
}

type subscription struct {
	id   string
	spec QuerySpec
	sink Sink

	dirty chan struct{} // buffered(1): pending notifications coalesce
	done  chan struct{}

	// pushMu orders emits against Unsubscribe: once cancelled is set under
	// pushMu, no further push is observable.
	pushMu    sync.Mutex
	cancelled bool

	// last delivered payload; only touched by the watch goroutine after
	// Subscribe returns.
	last json.RawMessage
	deps []string
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		logger: logger,
		subs:   make(map[string]*subscription),
		index:  make(map[string]map[string]*subscription),
	}
}

// SetExecutor binds the query executor. Must be called before Subscribe;
// split from the constructor because the executor is built on services
// that in turn publish mutations into this engine.
func (e *Engine) SetExecutor(exec Executor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exec = exec
}

// Subscribe registers a live query for the given sink and returns the
// subscription id together with the marshaled initial result. The
// subscription is indexed on the keys derivable from the spec before the
// initial execution runs, so a mutation committing in that window marks
// it dirty instead of being lost; the watch goroutine picks the pending
// notification up as soon as Subscribe returns.
func (e *Engine) Subscribe(ctx context.Context, spec QuerySpec, sink Sink) (string, json.RawMessage, error) {
	if err := spec.Validate(); err != nil {
		return "", nil, err
	}

	sub := &subscription{
		id:    uuid.New().String(),
		spec:  spec,
		sink:  sink,
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
		deps:  spec.baseKeys(),
	}

	e.mu.Lock()
	exec := e.exec
	if e.stopped {
		e.mu.Unlock()
		return "", nil, ErrEngineStopped
	}
	if exec == nil {
		e.mu.Unlock()
		return "", nil, ErrNoExecutor
	}
	e.subs[sub.id] = sub
	e.indexLocked(sub)
	e.mu.Unlock()

	result, deps, err := exec.Execute(ctx, spec)
	if err != nil {
		e.Unsubscribe(sub.id)
		return "", nil, err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		e.Unsubscribe(sub.id)
		return "", nil, err
	}

	sub.last = payload
	e.reindex(sub, deps)

	e.mu.Lock()
	if _, ok := e.subs[sub.id]; !ok {
		// Stop ran while the initial query was executing.
		e.mu.Unlock()
		return "", nil, ErrEngineStopped
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go e.watch(sub)

	e.logger.Debug("subscription registered",
		zap.String("subscription_id", sub.id),
		zap.String("kind", string(spec.Kind)),
		zap.Int("deps", len(deps)),
	)
	return sub.id, payload, nil
}

// Unsubscribe releases a subscription. Idempotent and safe to call
// concurrently with an in-flight push: after it returns, no further pushes
// for the id are observable.
func (e *Engine) Unsubscribe(subscriptionID string) {
	e.mu.Lock()
	sub, ok := e.subs[subscriptionID]
	if ok {
		delete(e.subs, subscriptionID)
		e.unindexLocked(sub)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	sub.pushMu.Lock()
	sub.cancelled = true
	sub.pushMu.Unlock()
	close(sub.done)
}

// NotifyMutation marks every subscription depending on one of the changed
// keys for recomputation. Returns immediately; recomputation happens on
// the subscriptions' own goroutines.
func (e *Engine) NotifyMutation(change Change) {
	e.mu.Lock()
	affected := make(map[string]*subscription)
	for _, key := range change.Keys {
		for id, sub := range e.index[key] {
			affected[id] = sub
		}
	}
	e.mu.Unlock()

	if len(affected) == 0 {
		return
	}

	e.logger.Debug("mutation committed",
		zap.String("entity_kind", change.EntityKind),
		zap.String("entity_id", change.EntityID),
		zap.Int("affected", len(affected)),
	)

	for _, sub := range affected {
		select {
		case sub.dirty <- struct{}{}:
		default:
			// already pending; the next recompute reads fresh state
		}
	}
}

// Stop tears down all subscriptions and waits for in-flight
// recomputations to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	subs := make([]*subscription, 0, len(e.subs))
	for id, sub := range e.subs {
		subs = append(subs, sub)
		delete(e.subs, id)
		e.unindexLocked(sub)
	}
	e.mu.Unlock()

	for _, sub := range subs {
		sub.pushMu.Lock()
		sub.cancelled = true
		sub.pushMu.Unlock()
		close(sub.done)
	}
	e.wg.Wait()
}

func (e *Engine) watch(sub *subscription) {
	defer e.wg.Done()
	for {
		select {
		case <-sub.done:
			return
		case <-sub.dirty:
			e.recompute(sub)
		}
	}
}

func (e *Engine) recompute(sub *subscription) {
	ctx, cancel := context.WithTimeout(context.Background(), recomputeTimeout)
	defer cancel()

	result, deps, err := e.exec.Execute(ctx, sub.spec)
	if err != nil {
		// A failed cycle must not tear the subscription down; the client
		// keeps its last known-good view.
		e.logger.Warn("live query recompute failed",
			zap.String("subscription_id", sub.id),
			zap.String("kind", string(sub.spec.Kind)),
			zap.Error(err),
		)
		e.emit(sub, sub.last)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		e.logger.Error("live query result marshal failed",
			zap.String("subscription_id", sub.id),
			zap.Error(err),
		)
		return
	}

	e.reindex(sub, deps)

	if bytes.Equal(payload, sub.last) {
		return
	}
	sub.last = payload
	e.emit(sub, payload)
}

// reindex swaps the subscription's dependency keys; a query's footprint
// can change between executions.
func (e *Engine) reindex(sub *subscription, deps []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[sub.id]; !ok {
		return
	}
	e.unindexLocked(sub)
	sub.deps = deps
	e.indexLocked(sub)
}

func (e *Engine) indexLocked(sub *subscription) {
	for _, key := range sub.deps {
		bucket, ok := e.index[key]
		if !ok {
			bucket = make(map[string]*subscription)
			e.index[key] = bucket
		}
		bucket[sub.id] = sub
	}
}

func (e *Engine) unindexLocked(sub *subscription) {
	for _, key := range sub.deps {
		if bucket, ok := e.index[key]; ok {
			delete(bucket, sub.id)
			if len(bucket) == 0 {
				delete(e.index, key)
			}
		}
	}
}

func (e *Engine) emit(sub *subscription, payload json.RawMessage) {
	sub.pushMu.Lock()
	defer sub.pushMu.Unlock()
	if sub.cancelled {
		return
	}
	sub.sink.Push(sub.id, payload)
}
