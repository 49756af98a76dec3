// Package runtime provides the execution-runtime interface the chain
// worker calls into to execute proposed blocks, plus a default in-process
// implementation adapted from the teacher's vm package
// (tolelom-tolchain/vm/executor.go, vm/registry.go): the same
// operation-kind-dispatched Handler registry, generalized from
// transaction-type dispatch over wallet accounts to operation-kind dispatch
// over a chain's arbitrary execution state.
package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tolelom/multichain/block"
)

// ErrNotFound is returned by State.Get when key does not exist, so
// Handlers can distinguish "absent" from a genuine storage failure
// without runtime needing to import package storage.
var ErrNotFound = errors.New("runtime: key not found")

// Handler applies one operation's payload to state, appending any events
// or outgoing messages it produces to ctx.
type Handler func(ctx *Context, payload json.RawMessage) error

// Context is passed to every Handler: the chain's key-value execution
// state, the block being executed, and the accumulators a handler appends
// to.
type Context struct {
	State   State
	Block   *block.Block
	Events  []block.Event
	Outbox  []block.OutgoingMessage
}

// State is the narrow key-value view a Handler needs into chain execution
// state — deliberately not the full storage.ViewStore, so runtime does not
// need to import package worker.
type State interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte)
	Delete(key []byte)
}

// EmitEvent appends an event to the stream the current operation is
// producing for.
func (c *Context) EmitEvent(streamID string, payload json.RawMessage) {
	c.Events = append(c.Events, block.Event{StreamID: streamID, Payload: payload})
}

// SendMessage appends a cross-chain message to this block's outbox.
func (c *Context) SendMessage(msg block.OutgoingMessage) {
	c.Outbox = append(c.Outbox, msg)
}

// Registry maps operation kinds to Handlers. Thread-safe for concurrent
// registration, matching the teacher's vm.Registry.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register associates kind with h. Panics on duplicate registration, the
// same fail-fast the teacher uses for misconfigured modules.
func (r *Registry) Register(kind string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[kind]; exists {
		panic(fmt.Sprintf("runtime: handler already registered for operation kind %q", kind))
	}
	r.handlers[kind] = h
}

// Execute dispatches payload to the handler registered for kind.
func (r *Registry) Execute(ctx *Context, kind string, payload json.RawMessage) error {
	r.mu.RLock()
	h, ok := r.handlers[kind]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("runtime: no handler registered for operation kind %q", kind)
	}
	return h(ctx, payload)
}

// DefaultRegistry is the package-level singleton operation modules
// self-register into from their init() functions, mirroring the
// teacher's vm.globalRegistry/vm.Register. A validator process wires
// DefaultRegistry into its Executor after blank-importing the modules it
// wants enabled; a test may build its own Registry instead.
var DefaultRegistry = NewRegistry()

// Register adds h to DefaultRegistry under kind. Operation module init()
// functions call this to self-register, the same pattern as the
// teacher's vm.Register(core.TxType, vm.Handler).
func Register(kind string, h Handler) {
	DefaultRegistry.Register(kind, h)
}

// BlockExecutionOutcome is the result of executing a proposed block: the
// outgoing messages, events and resulting state hash (spec.md §6
// "Execution runtime").
type BlockExecutionOutcome = block.ExecutionOutcome

// Executor is the default in-process execution runtime, dispatching each
// operation in a proposed block to the Registry sequentially, the way the
// teacher's Executor.ExecuteBlock applies transactions in order.
type Executor struct {
	registry *Registry
}

// NewExecutor creates an Executor dispatching through registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// ExecuteBlock runs proposed's operations against state in order,
// returning the accumulated outcome. localTime, publishedBlobIDs and
// oracleResponses are accepted but not passed to handlers: a handler sees
// only ctx.State and ctx.Block.
func (e *Executor) ExecuteBlock(proposed block.Block, localTime int64, publishedBlobIDs []string, oracleResponses []block.OracleResponse, state State) (BlockExecutionOutcome, error) {
	ctx := &Context{State: state, Block: &proposed}
	for i, op := range proposed.Body.Operations {
		if err := e.registry.Execute(ctx, op.Kind, op.Payload); err != nil {
			return BlockExecutionOutcome{}, fmt.Errorf("execute operation %d (%s): %w", i, op.Kind, err)
		}
	}
	outcome := BlockExecutionOutcome{
		OutgoingMessages: ctx.Outbox,
		Events:           ctx.Events,
		StateHash:        "", // filled in by the caller once the state root is computed
	}
	return outcome, nil
}
