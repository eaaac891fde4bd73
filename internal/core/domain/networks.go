package domain

import "fmt"

// Network describes a supported EVM chain.
type Network struct {
	Name     string
	ChainID  uint64
	Explorer string
}

// Built-in chain IDs.
const (
	ChainIDMainnet uint64 = 1
	ChainIDSepolia uint64 = 11155111
	ChainIDLocal   uint64 = 31337
)

var networks = map[uint64]Network{
	ChainIDMainnet: {Name: "mainnet", ChainID: ChainIDMainnet, Explorer: "https://etherscan.io"},
	ChainIDSepolia: {Name: "sepolia", ChainID: ChainIDSepolia, Explorer: "https://sepolia.etherscan.io"},
	ChainIDLocal:   {Name: "local", ChainID: ChainIDLocal},
}

var networksByName = map[string]uint64{
	"mainnet": ChainIDMainnet,
	"sepolia": ChainIDSepolia,
	"local":   ChainIDLocal,
}

// NetworkByID returns the network registered under the given chain ID.
func NetworkByID(chainID uint64) (Network, error) {
	n, ok := networks[chainID]
	if !ok {
		return Network{}, fmt.Errorf("unsupported chain ID: %d", chainID)
	}
	return n, nil
}

// NetworkByName resolves a network name ("mainnet", "sepolia", "local").
func NetworkByName(name string) (Network, error) {
	id, ok := networksByName[name]
	if !ok {
		return Network{}, fmt.Errorf("unknown network name: %q", name)
	}
	return networks[id], nil
}
