/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

// Network identifies the chain an asset settles on.
type Network string

const (
	NetworkEthereum Network = "ethereum-mainnet"
	NetworkPolygon  Network = "polygon-mainnet"
	NetworkOptimism Network = "optimism-mainnet"
	NetworkArbitrum Network = "arbitrum-mainnet"
	NetworkBase     Network = "base-mainnet"
	NetworkSepolia  Network = "ethereum-sepolia"
	NetworkBitcoin  Network = "bitcoin-mainnet"
	NetworkSolana   Network = "solana-mainnet"
)

var evmChainIDs = map[Network]int64{
	NetworkEthereum: 1,
	NetworkPolygon:  137,
	NetworkOptimism: 10,
	NetworkArbitrum: 42161,
	NetworkBase:     8453,
	NetworkSepolia:  11155111,
}

var knownNetworks = map[Network]bool{
	NetworkEthereum: true,
	NetworkPolygon:  true,
	NetworkOptimism: true,
	NetworkArbitrum: true,
	NetworkBase:     true,
	NetworkSepolia:  true,
	NetworkBitcoin:  true,
	NetworkSolana:   true,
}

func (n Network) Valid() bool {
	return knownNetworks[n]
}

func (n Network) IsEVM() bool {
	_, ok := evmChainIDs[n]
	return ok
}

// ChainID returns the EIP-155 chain id, or 0 for non-EVM networks.
func (n Network) ChainID() int64 {
	return evmChainIDs[n]
}

func (n Network) IsTestnet() bool {
	return n == NetworkSepolia
}

// AllowedNetworks returns the networks a checkout may use in the given environment.
// Testnets are only offered in development.
func AllowedNetworks(appEnv string) []Network {
	networks := []Network{
		NetworkEthereum, NetworkPolygon, NetworkOptimism, NetworkArbitrum, NetworkBase,
		NetworkBitcoin, NetworkSolana,
	}
	if appEnv == "development" {
		networks = append(networks, NetworkSepolia)
	}
	return networks
}

// Allowed reports whether n may be used in the given environment.
func (n Network) Allowed(appEnv string) bool {
	for _, allowed := range AllowedNetworks(appEnv) {
		if n == allowed {
			return true
		}
	}
	return false
}

// PrimeIds splits the network into the id and type pair used by custody APIs,
// for example "ethereum" and "mainnet".
func (n Network) PrimeIds() (string, string) {
	s := string(n)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '-' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}
