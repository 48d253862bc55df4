package web3

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainDefinitions models the structure of configs/chain.yaml.
type ChainDefinitions struct {
	Networks map[string]ChainDefinition `yaml:"networks"`
}

// ChainDefinition describes a single network entry. Empty fields inherit the
// built-in definition of the same id.
type ChainDefinition struct {
	ChainID      int64  `yaml:"chain_id"`
	RPCURL       string `yaml:"rpc_url"`
	NativeSymbol string `yaml:"native_symbol"`
	Testnet      *bool  `yaml:"testnet"`
	Description  string `yaml:"description"`
}

// LoadChainDefinitions parses the YAML file containing network metadata.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Networks: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}

	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Networks == nil {
		defs.Networks = map[string]ChainDefinition{}
	}
	return defs, nil
}

// BuiltinNetworks returns the networks known without any configuration.
func BuiltinNetworks() map[string]Network {
	return map[string]Network{
		"base-sepolia": {
			ID:           "base-sepolia",
			ChainID:      84532,
			RPCURL:       "https://sepolia.base.org",
			NativeSymbol: "ETH",
			Testnet:      true,
			Description:  "Base Sepolia testnet",
		},
		"base-mainnet": {
			ID:           "base-mainnet",
			ChainID:      8453,
			RPCURL:       "https://mainnet.base.org",
			NativeSymbol: "ETH",
			Description:  "Base mainnet",
		},
		"ethereum-sepolia": {
			ID:           "ethereum-sepolia",
			ChainID:      11155111,
			RPCURL:       "https://rpc.sepolia.org",
			NativeSymbol: "ETH",
			Testnet:      true,
			Description:  "Ethereum Sepolia testnet",
		},
		"ethereum-mainnet": {
			ID:           "ethereum-mainnet",
			ChainID:      1,
			RPCURL:       "https://eth.llamarpc.com",
			NativeSymbol: "ETH",
			Description:  "Ethereum mainnet",
		},
	}
}

// MergeNetworks overlays YAML definitions on top of the built-in networks.
func MergeNetworks(defs ChainDefinitions) (map[string]Network, error) {
	networks := BuiltinNetworks()

	ids := make([]string, 0, len(defs.Networks))
	for id := range defs.Networks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		def := defs.Networks[id]
		key := strings.ToLower(strings.TrimSpace(id))
		if key == "" {
			return nil, fmt.Errorf("链配置中存在空的网络标识")
		}
		network, ok := networks[key]
		if !ok {
			network = Network{ID: key, NativeSymbol: "ETH"}
		}
		if def.ChainID != 0 {
			network.ChainID = def.ChainID
		}
		if rpc := strings.TrimSpace(def.RPCURL); rpc != "" {
			network.RPCURL = rpc
		}
		if sym := strings.TrimSpace(def.NativeSymbol); sym != "" {
			network.NativeSymbol = sym
		}
		if def.Testnet != nil {
			network.Testnet = *def.Testnet
		}
		if def.Description != "" {
			network.Description = def.Description
		}
		if network.RPCURL == "" {
			return nil, fmt.Errorf("网络 %s 未配置 RPC 地址", key)
		}
		networks[key] = network
	}
	return networks, nil
}
