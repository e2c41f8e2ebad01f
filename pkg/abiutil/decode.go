package abiutil

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ethcache/fetcher/pkg/eventindex"
)

// DecodeLogArgs decodes log's indexed and non-indexed arguments for
// eventName in parsed into an eventindex.Value object keyed by argument
// name, generalizing the decode step a generated contract binding would
// otherwise perform for one fixed event.
func DecodeLogArgs(parsed *abi.ABI, eventName string, log types.Log) (eventindex.Value, error) {
	ev, ok := parsed.Events[eventName]
	if !ok {
		return eventindex.Value{}, fmt.Errorf("event %q not found in abi", eventName)
	}

	var indexedArgs, nonIndexedArgs abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexedArgs = append(indexedArgs, arg)
		} else {
			nonIndexedArgs = append(nonIndexedArgs, arg)
		}
	}

	out := make(map[string]eventindex.Value, len(ev.Inputs))

	if len(nonIndexedArgs) > 0 {
		unpacked, err := nonIndexedArgs.Unpack(log.Data)
		if err != nil {
			return eventindex.Value{}, fmt.Errorf("unpacking non-indexed args: %s", err)
		}
		for i, arg := range nonIndexedArgs {
			out[arg.Name] = nativeToValue(unpacked[i])
		}
	}

	for i, arg := range indexedArgs {
		if i+1 >= len(log.Topics) {
			break
		}
		out[arg.Name] = topicToValue(arg, log.Topics[i+1])
	}

	return eventindex.NewObject(out), nil
}

// nativeToValue converts a Go value as produced by abi.Arguments.Unpack
// into an eventindex.Value scalar, normalizing addresses and byte slices to
// lowercase 0x-hex and big integers to their base-10 string form.
func nativeToValue(v interface{}) eventindex.Value {
	switch t := v.(type) {
	case common.Address:
		return eventindex.NewScalar(strings.ToLower(t.Hex()))
	case *big.Int:
		return eventindex.NewScalar(t.String())
	case bool:
		return eventindex.NewScalar(t)
	case string:
		return eventindex.NewScalar(t)
	case []byte:
		return eventindex.NewScalar("0x" + strings.ToLower(common.Bytes2Hex(t)))
	default:
		return eventindex.NewScalar(fmt.Sprint(t))
	}
}

// topicToValue decodes an indexed argument's topic hash according to its
// static ABI type. Dynamic indexed types (string, bytes, arrays) are only
// available as their keccak256 hash per the ABI spec and are kept as the
// raw topic hex.
func topicToValue(arg abi.Argument, topic common.Hash) eventindex.Value {
	switch arg.Type.T {
	case abi.AddressTy:
		return eventindex.NewScalar(strings.ToLower(common.BytesToAddress(topic.Bytes()).Hex()))
	case abi.BoolTy:
		return eventindex.NewScalar(topic.Big().Sign() != 0)
	case abi.IntTy, abi.UintTy:
		return eventindex.NewScalar(topic.Big().String())
	default:
		return eventindex.NewScalar(strings.ToLower(topic.Hex()))
	}
}
