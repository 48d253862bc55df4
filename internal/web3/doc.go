// Package web3 houses blockchain connectivity utilities: the network
// definitions the wallet can bind to (built-in entries plus
// configs/chain.yaml), the WalletProvider abstraction consumed by action
// providers, and decimal unit conversion helpers.
package web3
