package config

import (
	"fmt"

	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/chainstate"
	"github.com/tolelom/multichain/committee"
	"github.com/tolelom/multichain/crypto"
	"github.com/tolelom/multichain/storage"
)

// Bootstrap writes the genesis committee, the NetworkDescription bootstrap
// record and an activated admin chain into store/view, the validator-local
// equivalent of the teacher's CreateGenesisBlock: instead of signing a
// block #0, it seeds the records every chain worker request handler
// consults before it will process anything (spec.md §4.5(B)'s committee
// lookup, §6's NetworkDescription).
func Bootstrap(cfg *Config, store *storage.Store, view *storage.ViewStore) (chainid.ID, error) {
	adminChain, err := chainid.IDFromHex(cfg.Genesis.AdminChainID)
	if err != nil {
		return chainid.ID{}, fmt.Errorf("genesis: admin_chain_id: %w", err)
	}

	validators := make([]committee.Validator, 0, len(cfg.Genesis.Validators))
	for _, v := range cfg.Genesis.Validators {
		pub, err := crypto.PubKeyFromHex(v.PublicKey)
		if err != nil {
			return chainid.ID{}, fmt.Errorf("genesis: validator public key: %w", err)
		}
		validators = append(validators, committee.Validator{PublicKey: pub, Weight: v.Weight})
	}
	policy := committee.Policy{
		MaxBlobSize:           cfg.Genesis.Policy.MaxBlobSize,
		MaxBlobsPerBlock:      cfg.Genesis.Policy.MaxBlobsPerBlock,
		MaximumPublishedBlobs: cfg.Genesis.Policy.MaximumPublishedBlobs,
	}
	genesisCommittee := committee.New(0, validators, policy)
	if err := store.WriteCommittee(genesisCommittee); err != nil {
		return chainid.ID{}, fmt.Errorf("genesis: write committee: %w", err)
	}
	if err := store.WriteNetworkDescription(storage.NetworkDescription{AdminChainID: adminChain}); err != nil {
		return chainid.ID{}, fmt.Errorf("genesis: write network description: %w", err)
	}

	admin := chainstate.New(adminChain, view)
	admin.Active = true
	admin.Epoch = 0
	admin.Committees[0] = genesisCommittee
	admin.Tip = chainstate.Tip{NextBlockHeight: 0, BlockHash: GenesisHash}
	if err := admin.Save(); err != nil {
		return chainid.ID{}, fmt.Errorf("genesis: save admin chain: %w", err)
	}
	if err := view.Commit(); err != nil {
		return chainid.ID{}, fmt.Errorf("genesis: commit: %w", err)
	}
	return adminChain, nil
}

// GenesisHash is the canonical all-zeros previous hash for a chain's first
// block (64 hex chars, matching chainid.Hash's output width).
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// IsGenesisHash reports whether h is the canonical genesis previous-hash.
func IsGenesisHash(h string) bool {
	return h == GenesisHash
}
