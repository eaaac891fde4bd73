// Package normalize converts the mixed hex-string/number/byte encodings found
// in JSON-RPC payloads into canonical typed values: unsigned integers, decimal
// strings for big quantities, and lower-case 0x-prefixed hex for byte data.
// All functions are pure and deterministic.
package normalize

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ErrMalformedValue is returned when an input is not representable as the
// target canonical type. It aborts the enclosing block's ingestion unit.
var ErrMalformedValue = errors.New("malformed value")

// ToUint64 converts a 0x-prefixed hex string, decimal string, or native
// integer into a uint64.
func ToUint64(v any) (uint64, error) {
	switch x := v.(type) {
	case uint64:
		return x, nil
	case int:
		if x < 0 {
			return 0, fmt.Errorf("%w: negative integer %d", ErrMalformedValue, x)
		}
		return uint64(x), nil
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("%w: negative integer %d", ErrMalformedValue, x)
		}
		return uint64(x), nil
	case float64:
		// JSON numbers decode as float64; only integral values are valid.
		if x < 0 || x != math.Trunc(x) || x > math.MaxUint64 {
			return 0, fmt.Errorf("%w: non-integral number %v", ErrMalformedValue, x)
		}
		return uint64(x), nil
	case json.Number:
		return ToUint64(string(x))
	case string:
		if s, ok := strings.CutPrefix(x, "0x"); ok {
			if s == "" {
				return 0, fmt.Errorf("%w: empty hex quantity", ErrMalformedValue)
			}
			n, err := strconv.ParseUint(s, 16, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %q", ErrMalformedValue, x)
			}
			return n, nil
		}
		n, err := strconv.ParseUint(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedValue, x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrMalformedValue, v)
	}
}

// ToBigInt converts a 0x-prefixed hex string, decimal string, or native
// integer into a non-negative big integer. Values exceeding 64 bits (token
// balances, difficulty) must go through here rather than ToUint64.
func ToBigInt(v any) (*big.Int, error) {
	switch x := v.(type) {
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case int:
		if x < 0 {
			return nil, fmt.Errorf("%w: negative integer %d", ErrMalformedValue, x)
		}
		return big.NewInt(int64(x)), nil
	case int64:
		if x < 0 {
			return nil, fmt.Errorf("%w: negative integer %d", ErrMalformedValue, x)
		}
		return big.NewInt(x), nil
	case float64:
		if x < 0 || x != math.Trunc(x) {
			return nil, fmt.Errorf("%w: non-integral number %v", ErrMalformedValue, x)
		}
		return new(big.Int).SetUint64(uint64(x)), nil
	case json.Number:
		return ToBigInt(string(x))
	case string:
		n := new(big.Int)
		if s, ok := strings.CutPrefix(x, "0x"); ok {
			if s == "" {
				return nil, fmt.Errorf("%w: empty hex quantity", ErrMalformedValue)
			}
			if _, ok := n.SetString(s, 16); !ok {
				return nil, fmt.Errorf("%w: %q", ErrMalformedValue, x)
			}
			return n, nil
		}
		if _, ok := n.SetString(x, 10); !ok || n.Sign() < 0 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedValue, x)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrMalformedValue, v)
	}
}

// ToQuantity converts a numeric input to its canonical decimal-string form.
func ToQuantity(v any) (string, error) {
	n, err := ToBigInt(v)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// ToCanonicalString converts byte sequences to lower-case 0x-prefixed hex and
// integers to decimal strings. Hex-prefixed strings are lower-cased; other
// strings pass through unchanged.
func ToCanonicalString(v any) (string, error) {
	switch x := v.(type) {
	case []byte:
		return "0x" + hex.EncodeToString(x), nil
	case string:
		if strings.HasPrefix(x, "0x") || strings.HasPrefix(x, "0X") {
			return "0x" + strings.ToLower(x[2:]), nil
		}
		return x, nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if x != math.Trunc(x) {
			return "", fmt.Errorf("%w: non-integral number %v", ErrMalformedValue, x)
		}
		return strconv.FormatInt(int64(x), 10), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrMalformedValue, v)
	}
}
