// Package alert turns anomalous-transaction event payloads into typed events and
// renders them as human-readable alert text.
package alert

import "github.com/shopspring/decimal"

// Type is the value of a payload's "type" field.
type Type string

// Recognised event types.
const (
	TypeEthereumValue   Type = "ethereum_anomalous_value"
	TypeEthereumGasCost Type = "ethereum_anomalous_gas_cost"
	TypeBitcoinValue    Type = "bitcoin_anomalous_value"
)

// Event is one classified payload. The set of implementations is closed:
// EthereumValue, EthereumGasCost, BitcoinValue and Unrecognized.
type Event interface {
	Type() Type
	TxHash() string
	event()
}

// EthereumValue is a transfer whose value (in wei) was flagged as unusually high.
type EthereumValue struct {
	Hash  string
	Value decimal.Decimal
}

// EthereumGasCost is a transaction whose gas cost (in wei) was flagged as unusually high.
type EthereumGasCost struct {
	Hash    string
	GasCost decimal.Decimal
}

// BitcoinValue is a transfer whose input value (in satoshi) was flagged as unusually high.
type BitcoinValue struct {
	Hash       string
	InputValue decimal.Decimal
}

// Unrecognized carries a type this relay has no rule for. It renders to nothing.
type Unrecognized struct {
	Raw string
}

func (EthereumValue) Type() Type { return TypeEthereumValue }
func (e EthereumValue) TxHash() string { return e.Hash }
func (EthereumValue) event() {}

func (EthereumGasCost) Type() Type { return TypeEthereumGasCost }
func (e EthereumGasCost) TxHash() string { return e.Hash }
func (EthereumGasCost) event() {}

func (BitcoinValue) Type() Type { return TypeBitcoinValue }
func (e BitcoinValue) TxHash() string { return e.Hash }
func (BitcoinValue) event() {}

func (u Unrecognized) Type() Type { return Type(u.Raw) }
func (Unrecognized) TxHash() string { return "" }
func (Unrecognized) event() {}
