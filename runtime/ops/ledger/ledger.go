// Package ledger registers a minimal balance-transfer operation into
// runtime.DefaultRegistry, self-registered from init() the way the
// teacher's vm/modules/economy registers TxTransfer. It exists so the
// generic execution runtime (runtime.Registry, spec.md §4.14) has a
// concrete, testable operation kind rather than shipping empty — a real
// deployment registers its own handlers (or a WASM runtime entirely) in
// its place.
package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/multichain/runtime"
)

// KindTransfer is the operation kind handled by handleTransfer.
const KindTransfer = "ledger.transfer"

// TransferPayload moves amount from sender's balance to recipient's,
// both tracked as plain state keys under the "balance/" namespace.
type TransferPayload struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

func init() {
	runtime.Register(KindTransfer, handleTransfer)
}

func balanceKey(account string) []byte {
	return []byte("balance/" + account)
}

func getBalance(state runtime.State, account string) (uint64, error) {
	data, err := state.Get(balanceKey(account))
	if err == runtime.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var balance uint64
	if err := json.Unmarshal(data, &balance); err != nil {
		return 0, fmt.Errorf("decode balance for %q: %w", account, err)
	}
	return balance, nil
}

func putBalance(state runtime.State, account string, balance uint64) error {
	data, err := json.Marshal(balance)
	if err != nil {
		return err
	}
	state.Put(balanceKey(account), data)
	return nil
}

func handleTransfer(ctx *runtime.Context, payload json.RawMessage) error {
	var p TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", KindTransfer, err)
	}
	if p.Amount == 0 {
		return fmt.Errorf("%s: amount must be > 0", KindTransfer)
	}
	if p.Sender == "" || p.Recipient == "" {
		return fmt.Errorf("%s: sender and recipient are required", KindTransfer)
	}

	senderBalance, err := getBalance(ctx.State, p.Sender)
	if err != nil {
		return err
	}
	if senderBalance < p.Amount {
		return fmt.Errorf("%s: insufficient balance for %q: have %d, need %d", KindTransfer, p.Sender, senderBalance, p.Amount)
	}
	if err := putBalance(ctx.State, p.Sender, senderBalance-p.Amount); err != nil {
		return err
	}

	recipientBalance, err := getBalance(ctx.State, p.Recipient)
	if err != nil {
		return err
	}
	if err := putBalance(ctx.State, p.Recipient, recipientBalance+p.Amount); err != nil {
		return err
	}

	eventPayload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ctx.EmitEvent("ledger.transfer", eventPayload)
	return nil
}
