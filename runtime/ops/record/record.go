// Package record registers generic named-value publish/retract
// operations, self-registered the way the teacher's vm/modules/asset
// registers TxMintAsset/TxBurnAsset. Where ledger tracks a fungible
// balance, record tracks arbitrary application data a chain wants
// addressable by key and provable by inclusion in the execution-state
// root (I4) — the non-fungible-asset shape generalized away from
// wallet ownership.
package record

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/multichain/runtime"
)

// KindPublish and KindRetract are the operation kinds this package
// registers.
const (
	KindPublish = "record.publish"
	KindRetract = "record.retract"
)

// PublishPayload writes value under key in the chain's execution state.
type PublishPayload struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// RetractPayload deletes key from the chain's execution state.
type RetractPayload struct {
	Key string `json:"key"`
}

func init() {
	runtime.Register(KindPublish, handlePublish)
	runtime.Register(KindRetract, handleRetract)
}

func recordKey(key string) []byte {
	return []byte("record/" + key)
}

func handlePublish(ctx *runtime.Context, payload json.RawMessage) error {
	var p PublishPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", KindPublish, err)
	}
	if p.Key == "" {
		return fmt.Errorf("%s: key is required", KindPublish)
	}
	ctx.State.Put(recordKey(p.Key), p.Value)
	ctx.EmitEvent("record.published", payload)
	return nil
}

func handleRetract(ctx *runtime.Context, payload json.RawMessage) error {
	var p RetractPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", KindRetract, err)
	}
	if p.Key == "" {
		return fmt.Errorf("%s: key is required", KindRetract)
	}
	if _, err := ctx.State.Get(recordKey(p.Key)); err != nil {
		if err == runtime.ErrNotFound {
			return fmt.Errorf("%s: key %q not found", KindRetract, p.Key)
		}
		return err
	}
	ctx.State.Delete(recordKey(p.Key))
	ctx.EmitEvent("record.retracted", payload)
	return nil
}
