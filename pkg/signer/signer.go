package signer

import (
	"context"
	"sync"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

// Keyring signs extrinsics with a key derived from a secret URI ("//Alice", a mnemonic or a hex seed).
type Keyring struct {
	pair    signature.KeyringPair
	address string
	logger  *zap.Logger

	// mu protects the runtime data below, refreshed when the spec version changes.
	mu          sync.Mutex
	meta        *types.Metadata
	specVersion uint32
	genesisHash types.Hash
}

var _ chain.Signer = (*Keyring)(nil)

func New(suri string, ss58Prefix uint16, logger *zap.Logger) (*Keyring, error) {
	pair, err := signature.KeyringPairFromSecret(suri, ss58Prefix)
	if err != nil {
		return nil, errors.Wrap(err, "derive signer key")
	}
	if len(pair.PublicKey) != 32 {
		return nil, errors.Errorf("unexpected public key length %d", len(pair.PublicKey))
	}
	var pub core.PublicKey
	copy(pub[:], pair.PublicKey)
	return &Keyring{
		pair:    pair,
		address: core.EncodeSS58(pub, ss58Prefix),
		logger:  logger,
	}, nil
}

func (k *Keyring) Address() string {
	return k.address
}

type runtimeVersion struct {
	SpecVersion        uint32 `json:"specVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
}

// Sign builds call against the current runtime and signs it as an immortal transaction with the next nonce.
func (k *Keyring) Sign(ctx context.Context, api chain.RPC, call chain.Call) (string, error) {
	var version runtimeVersion
	if err := api.Call(ctx, &version, "state_getRuntimeVersion"); err != nil {
		return "", errors.Wrap(err, "runtime version")
	}
	meta, genesis, err := k.runtime(ctx, api, version.SpecVersion)
	if err != nil {
		return "", err
	}

	args := make([]any, 0, len(call.Args))
	for i, a := range call.Args {
		v, err := scaleArg(a)
		if err != nil {
			return "", errors.Wrapf(err, "%s.%s argument %d", call.Pallet, call.Name, i)
		}
		args = append(args, v)
	}
	c, err := types.NewCall(meta, call.Pallet+"."+call.Name, args...)
	if err != nil {
		return "", errors.Wrapf(err, "build %s.%s", call.Pallet, call.Name)
	}

	var nonce uint64
	if err := api.Call(ctx, &nonce, "system_accountNextIndex", k.address); err != nil {
		return "", errors.Wrap(err, "account nonce")
	}

	ext := types.NewExtrinsic(c)
	err = ext.Sign(k.pair, types.SignatureOptions{
		BlockHash:          genesis,
		Era:                types.ExtrinsicEra{IsMortalEra: false},
		GenesisHash:        genesis,
		Nonce:              types.NewUCompactFromUInt(nonce),
		SpecVersion:        types.U32(version.SpecVersion),
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: types.U32(version.TransactionVersion),
	})
	if err != nil {
		return "", errors.Wrap(err, "sign extrinsic")
	}
	encoded, err := codec.EncodeToHex(ext)
	if err != nil {
		return "", errors.Wrap(err, "encode extrinsic")
	}
	k.logger.Debug("signed extrinsic",
		zap.String("call", call.Pallet+"."+call.Name),
		zap.Uint64("nonce", nonce),
		zap.Uint32("spec_version", version.SpecVersion))
	return encoded, nil
}

func (k *Keyring) runtime(ctx context.Context, api chain.RPC, specVersion uint32) (*types.Metadata, types.Hash, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.meta != nil && k.specVersion == specVersion {
		return k.meta, k.genesisHash, nil
	}
	var raw string
	if err := api.Call(ctx, &raw, "state_getMetadata"); err != nil {
		return nil, types.Hash{}, errors.Wrap(err, "runtime metadata")
	}
	var meta types.Metadata
	if err := codec.DecodeFromHex(raw, &meta); err != nil {
		return nil, types.Hash{}, errors.Wrap(err, "decode runtime metadata")
	}
	genesisHex, err := chain.BlockHash(ctx, api, 0)
	if err != nil {
		return nil, types.Hash{}, errors.Wrap(err, "genesis hash")
	}
	genesis, err := types.NewHashFromHexString(genesisHex)
	if err != nil {
		return nil, types.Hash{}, errors.Wrap(err, "genesis hash")
	}
	k.meta = &meta
	k.specVersion = specVersion
	k.genesisHash = genesis
	return k.meta, k.genesisHash, nil
}
