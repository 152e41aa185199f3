package core

// Node runtime orchestration: wires the component graph behind the typed
// event bus (events.go) and drives it with explicit goroutine +
// context.Context + select loops. Protocol state machines stay explicit;
// nothing here is expressed as an implicit continuation.

import (
	"context"
	"sync"
	"time"
)

// Runtime owns one node's full component graph and its lifecycle.
type Runtime struct {
	cfg NodeConfig
	bus *Bus

	mempool   *Mempool
	state     *StateStore
	dag       *DAG
	dkg       *Engine
	farmer    *Farmer
	harvester *Harvester
	miner     *Miner
	quorum    *Allocator

	errCh chan error

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewRuntime wires a Runtime from cfg and the already-constructed
// component set. Components that do not apply to cfg.NodeType (e.g. miner
// on a Validator node) may be passed nil.
func NewRuntime(cfg NodeConfig, bus *Bus, mempool *Mempool, state *StateStore, dag *DAG, dkg *Engine, farmer *Farmer, harvester *Harvester, miner *Miner, quorum *Allocator) *Runtime {
	return &Runtime{
		cfg:       cfg,
		bus:       bus,
		mempool:   mempool,
		state:     state,
		dag:       dag,
		dkg:       dkg,
		farmer:    farmer,
		harvester: harvester,
		miner:     miner,
		quorum:    quorum,
		errCh:     make(chan error, 16),
	}
}

// Errors returns the runtime's error-reporting channel; component tasks
// surface non-fatal errors here and the runtime logs and continues.
func (r *Runtime) Errors() <-chan error { return r.errCh }

// Start launches the runtime's background tasks: a publish-ticker for the
// mempool's left-right buffer, and the event-dispatch loop over the
// runtime topic. It returns once the tasks are running; call Stop to
// unwind them.
func (r *Runtime) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.mempoolPublishLoop(ctx)

	r.wg.Add(1)
	go r.eventLoop(ctx)
}

// mempoolPublishLoop periodically promotes staged mempool writes, the
// left-right "publish" half of the discipline.
func (r *Runtime) mempoolPublishLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.mempool.Publish()
			return
		case <-ticker.C:
			r.mempool.Publish()
		}
	}
}

// eventLoop drains the runtime topic and dispatches to the relevant
// component, forwarding component errors on errCh.
func (r *Runtime) eventLoop(ctx context.Context) {
	defer r.wg.Done()
	events := r.bus.Subscribe(TopicRuntime)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == EventStop {
				return
			}
			r.dispatch(ev)
		}
	}
}

func (r *Runtime) dispatch(ev Event) {
	switch ev.Kind {
	case EventNewTransaction:
		txn, ok := ev.Payload.(Transaction)
		if !ok || r.farmer == nil {
			return
		}
		vote, err := r.farmer.Handle(txn, r.state.ReadHandle(), time.Now().UTC())
		if err != nil {
			r.reportError(err)
			return
		}
		r.bus.Publish(TopicNetwork, Event{Kind: EventNewTransaction, Payload: vote})
	case EventConvergenceBlockPrecheckRequested:
		block, ok := ev.Payload.(ConvergenceBlock)
		if !ok || r.harvester == nil {
			return
		}
		cert, err := r.harvester.SignConvergence(block)
		if err != nil {
			r.reportError(err)
			return
		}
		if cert != nil {
			if r.dag != nil {
				if err := r.dag.AttachCertificate(*cert); err != nil {
					r.reportError(err)
					return
				}
			}
			r.bus.Publish(TopicRuntime, Event{Kind: EventBlockCertificateCreated, Payload: *cert})
		}
	}
}

func (r *Runtime) reportError(err error) {
	select {
	case r.errCh <- err:
	default:
	}
}

// Stop unwinds all runtime tasks, fans Stop out over the bus, and waits
// for drain; in-flight work completes before tasks exit.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		r.bus.Publish(TopicRuntime, Event{Kind: EventStop})
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
		r.bus.Stop()
	})
}
