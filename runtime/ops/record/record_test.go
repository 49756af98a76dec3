package record

import (
	"encoding/json"
	"testing"

	"github.com/tolelom/multichain/runtime"
)

type memState struct {
	data map[string][]byte
}

func newMemState() *memState { return &memState{data: make(map[string][]byte)} }

func (s *memState) Get(key []byte) ([]byte, error) {
	v, ok := s.data[string(key)]
	if !ok {
		return nil, runtime.ErrNotFound
	}
	return v, nil
}
func (s *memState) Put(key, value []byte) { s.data[string(key)] = value }
func (s *memState) Delete(key []byte)     { delete(s.data, string(key)) }

func TestPublishThenRetract(t *testing.T) {
	state := newMemState()
	ctx := &runtime.Context{State: state}

	publishPayload, err := json.Marshal(PublishPayload{Key: "greeting", Value: json.RawMessage(`"hi"`)})
	if err != nil {
		t.Fatalf("marshal publish payload: %v", err)
	}
	if err := runtime.DefaultRegistry.Execute(ctx, KindPublish, publishPayload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := state.Get(recordKey("greeting"))
	if err != nil {
		t.Fatalf("expected value to be stored, got error: %v", err)
	}
	if string(got) != `"hi"` {
		t.Fatalf("got %s, want %q", got, `"hi"`)
	}

	retractPayload, err := json.Marshal(RetractPayload{Key: "greeting"})
	if err != nil {
		t.Fatalf("marshal retract payload: %v", err)
	}
	if err := runtime.DefaultRegistry.Execute(ctx, KindRetract, retractPayload); err != nil {
		t.Fatalf("retract: %v", err)
	}
	if _, err := state.Get(recordKey("greeting")); err != runtime.ErrNotFound {
		t.Fatalf("expected key to be gone after retract, got err=%v", err)
	}
}

func TestRetractUnknownKeyFails(t *testing.T) {
	state := newMemState()
	ctx := &runtime.Context{State: state}
	payload, err := json.Marshal(RetractPayload{Key: "nope"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := runtime.DefaultRegistry.Execute(ctx, KindRetract, payload); err == nil {
		t.Fatalf("expected error retracting an unpublished key")
	}
}

func TestPublishRequiresKey(t *testing.T) {
	state := newMemState()
	ctx := &runtime.Context{State: state}
	payload, err := json.Marshal(PublishPayload{Key: "", Value: json.RawMessage(`1`)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := runtime.DefaultRegistry.Execute(ctx, KindPublish, payload); err == nil {
		t.Fatalf("expected error publishing with empty key")
	}
}

func TestPublishEmitsEvent(t *testing.T) {
	state := newMemState()
	ctx := &runtime.Context{State: state}
	payload, err := json.Marshal(PublishPayload{Key: "k", Value: json.RawMessage(`1`)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := runtime.DefaultRegistry.Execute(ctx, KindPublish, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ctx.Events) != 1 || ctx.Events[0].StreamID != "record.published" {
		t.Fatalf("expected a record.published event, got %+v", ctx.Events)
	}
}
