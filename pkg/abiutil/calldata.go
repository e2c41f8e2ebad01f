// Package abiutil derives event-log topics and calldata from a go-ethereum
// ABI, the glue between a caller's event_name/argument_filter request and
// the topics the RPC layer filters on.
package abiutil

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethcache/fetcher/pkg/eventindex"
)

// EventTopic0 returns the keccak256 topic0 hash identifying event in parsed,
// i.e. keccak256("EventName(type1,type2,...)").
func EventTopic0(parsed *abi.ABI, eventName string) (common.Hash, error) {
	ev, ok := parsed.Events[eventName]
	if !ok {
		return common.Hash{}, fmt.Errorf("event %q not found in abi", eventName)
	}
	return ev.ID, nil
}

// IndexedArgTopics builds the topic filter ([]common.Hash per indexed
// position, nil meaning "any") for event's indexed arguments constrained by
// filter. Only scalar and list filter values on indexed arguments are
// supported; an object or nested filter value on a non-indexed argument is
// ignored since non-indexed arguments are never present in log topics.
func IndexedArgTopics(parsed *abi.ABI, eventName string, filter eventindex.Value) ([][]common.Hash, error) {
	ev, ok := parsed.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("event %q not found in abi", eventName)
	}
	f := eventindex.Normalize(filter)

	var indexed []abi.Argument
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	topics := make([][]common.Hash, len(indexed))
	if f.Kind != eventindex.KindObject {
		return topics, nil
	}
	for i, arg := range indexed {
		v, ok := f.Object[arg.Name]
		if !ok {
			continue
		}
		hashes, err := valueToTopicHashes(arg, v)
		if err != nil {
			return nil, fmt.Errorf("encoding topic for arg %q: %s", arg.Name, err)
		}
		topics[i] = hashes
	}
	return topics, nil
}

func valueToTopicHashes(arg abi.Argument, v eventindex.Value) ([]common.Hash, error) {
	switch v.Kind {
	case eventindex.KindScalar:
		h, err := scalarToTopic(arg, v.Scalar)
		if err != nil {
			return nil, err
		}
		return []common.Hash{h}, nil
	case eventindex.KindList:
		out := make([]common.Hash, 0, len(v.List))
		for _, item := range v.List {
			h, err := scalarToTopic(arg, item.Scalar)
			if err != nil {
				return nil, err
			}
			out = append(out, h)
		}
		return out, nil
	default:
		return nil, nil
	}
}

func scalarToTopic(arg abi.Argument, scalar interface{}) (common.Hash, error) {
	s, ok := scalar.(string)
	if !ok {
		return common.Hash{}, fmt.Errorf("non-string indexed argument filters are not supported")
	}
	if arg.Type.T == abi.AddressTy {
		return common.BytesToHash(common.HexToAddress(s).Bytes()), nil
	}
	if strings.HasPrefix(s, "0x") {
		return common.HexToHash(s), nil
	}
	return common.HexToHash(s), nil
}

// Selector returns the 4-byte function selector for fn's signature within
// parsed.
func Selector(parsed *abi.ABI, fn string) ([4]byte, error) {
	m, ok := parsed.Methods[fn]
	if !ok {
		return [4]byte{}, fmt.Errorf("method %q not found in abi", fn)
	}
	var sel [4]byte
	copy(sel[:], m.ID)
	return sel, nil
}

// Keccak256Hex returns the lowercase hex encoding (no 0x prefix) of
// keccak256(data), used to key cached calldata consistently with the rest
// of the store's lowercase-hex convention.
func Keccak256Hex(data []byte) string {
	return strings.ToLower(common.Bytes2Hex(crypto.Keccak256(data)))
}

// EncodeCall packs method's selector and ABI-encoded args into calldata,
// i.e. keccak256(signature)[:4] || abi_encode(args).
func EncodeCall(parsed *abi.ABI, method string, args ...interface{}) ([]byte, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing call %q: %s", method, err)
	}
	return data, nil
}

// CalldataHex returns the lowercase hex encoding (no 0x prefix) of calldata,
// the canonical key under which a cached call response is stored.
func CalldataHex(calldata []byte) string {
	return strings.ToLower(common.Bytes2Hex(calldata))
}
