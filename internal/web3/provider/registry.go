package provider

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sort"
	"strings"

	"walrus-agent/internal/config"
	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/web3"
	"walrus-agent/internal/web3/ethereum"
)

// Registry manages the set of networks the wallet can be bound to, keyed by
// network id.
type Registry struct {
	networks map[string]web3.Network
}

// NewRegistry loads chain definitions and merges them with built-in networks.
func NewRegistry(cfg config.Web3Config) (*Registry, error) {
	defs, err := web3.LoadChainDefinitions(cfg.ChainConfig)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "加载链配置失败")
	}
	networks, err := web3.MergeNetworks(defs)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "合并链配置失败")
	}
	return &Registry{networks: networks}, nil
}

// Network returns the network identified by id.
func (r *Registry) Network(id string) (web3.Network, error) {
	if r == nil {
		return web3.Network{}, errors.New("未初始化的网络注册表")
	}
	network, ok := r.networks[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return web3.Network{}, xerrors.New(xerrors.CodeUnsupportedNetwork,
			fmt.Sprintf("不支持的网络: %s", id),
			xerrors.WithMetadata("network", id))
	}
	return network, nil
}

// Dial binds the key to the named network and returns the wallet provider.
func (r *Registry) Dial(ctx context.Context, networkID string, key *ecdsa.PrivateKey, persistedAddress string) (web3.WalletProvider, error) {
	network, err := r.Network(networkID)
	if err != nil {
		return nil, err
	}
	wallet, err := ethereum.Dial(ctx, ethereum.Config{
		Network:          network,
		PrivateKey:       key,
		PersistedAddress: persistedAddress,
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// Networks returns the list of registered network ids.
func (r *Registry) Networks() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.networks))
	for name := range r.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
