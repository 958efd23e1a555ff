package alert

import (
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/shopspring/decimal"
	apperrors "github.com/target/txalert/internal/errors"
)

// Payload paths read by Classify.
const (
	pathType         = "type"
	pathTxHash       = "transaction.hash"
	pathTxValue      = "transaction.value"
	pathTxInputValue = "transaction.input_value"
	pathGasCost      = "gas_cost"
)

// requiredPaths lists, per recognised type, the fields that must be present and non-null.
var requiredPaths = map[Type][]string{
	TypeEthereumValue:   {pathTxValue, pathTxHash},
	TypeEthereumGasCost: {pathGasCost, pathTxHash},
	TypeBitcoinValue:    {pathTxInputValue, pathTxHash},
}

// Classify validates a decoded payload and returns its typed variant.
// A missing or blank type, or a missing type-required field, yields a validation error.
// A type with no rule yields Unrecognized and no error.
func Classify(doc map[string]any) (Event, error) {
	rawType, ok := doc[pathType]
	if !ok || rawType == nil {
		return nil, apperrors.ValidationField(pathType, "payload has no type")
	}
	typ, ok := rawType.(string)
	if !ok {
		return nil, apperrors.ValidationField(pathType, fmt.Sprintf("payload type must be a string, got %T", rawType))
	}
	if strings.TrimSpace(typ) == "" {
		return nil, apperrors.ValidationField(pathType, "payload type is empty")
	}

	paths, known := requiredPaths[Type(typ)]
	if !known {
		return Unrecognized{Raw: typ}, nil
	}

	fields := make(map[string]any, len(paths))
	for _, path := range paths {
		val, err := jmespath.Search(path, doc)
		if err != nil {
			return nil, apperrors.ValidationField(path, fmt.Sprintf("evaluate %s: %v", path, err))
		}
		if val == nil {
			return nil, apperrors.ValidationField(path, fmt.Sprintf("%s payload is missing %s", typ, path))
		}
		fields[path] = val
	}

	hash, err := stringField(fields, pathTxHash)
	if err != nil {
		return nil, err
	}

	switch Type(typ) {
	case TypeEthereumValue:
		value, err := amountField(fields, pathTxValue)
		if err != nil {
			return nil, err
		}
		return EthereumValue{Hash: hash, Value: value}, nil
	case TypeEthereumGasCost:
		cost, err := amountField(fields, pathGasCost)
		if err != nil {
			return nil, err
		}
		return EthereumGasCost{Hash: hash, GasCost: cost}, nil
	case TypeBitcoinValue:
		value, err := amountField(fields, pathTxInputValue)
		if err != nil {
			return nil, err
		}
		return BitcoinValue{Hash: hash, InputValue: value}, nil
	default:
		return Unrecognized{Raw: typ}, nil
	}
}

func stringField(fields map[string]any, path string) (string, error) {
	s, ok := fields[path].(string)
	if !ok {
		return "", apperrors.ValidationField(path, fmt.Sprintf("%s must be a string", path))
	}
	return s, nil
}

// amountField accepts JSON numbers and numeric strings.
func amountField(fields map[string]any, path string) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := fields[path].(type) {
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		d = decimal.NewFromFloat(v)
	default:
		return decimal.Decimal{}, apperrors.ValidationField(path, fmt.Sprintf("%s must be numeric, got %T", path, v))
	}
	if err != nil {
		return decimal.Decimal{}, apperrors.ValidationField(path, fmt.Sprintf("%s is not a number: %v", path, err))
	}
	return d, nil
}
