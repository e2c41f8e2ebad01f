// Package events holds the persisted, decoded event-log rows the
// EventFetcher writes and the cache repositories it and its consumers read
// from.
package events

import (
	"fmt"
	"strings"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/eventindex"
)

// Event is a decoded log entry: one emission of a named, indexed event on a
// contract at a specific block and transaction position.
type Event struct {
	ChainID     chain.ID
	BlockNumber int64
	TxHash      string
	LogIndex    int64
	Address     string
	EventName   string
	Args        eventindex.Value
}

// MatchesFilter reports whether e's decoded arguments satisfy filter: every
// key present in filter must be present in e.Args with an equal (or, for
// list filters, member-of) value. An event always matches the null/empty
// filter.
func (e Event) MatchesFilter(filter eventindex.Value) bool {
	f := eventindex.Normalize(filter)
	if f.Kind != eventindex.KindObject || len(f.Object) == 0 {
		return true
	}
	args := eventindex.Normalize(e.Args)
	if args.Kind != eventindex.KindObject {
		return false
	}
	for k, fv := range f.Object {
		av, ok := args.Object[k]
		if !ok {
			return false
		}
		if !valueMatches(fv, av) {
			return false
		}
	}
	return true
}

// valueMatches reports whether av (the event's actual argument value)
// satisfies fv (the filter's constraint for that argument): scalars must be
// equal; a filter list is an "any of" constraint against a scalar argument.
func valueMatches(fv, av eventindex.Value) bool {
	if fv.Kind == eventindex.KindList {
		for _, candidate := range fv.List {
			if valueMatches(candidate, av) {
				return true
			}
		}
		return false
	}
	if fv.Kind != av.Kind {
		return false
	}
	if fv.Kind == eventindex.KindScalar {
		return normalizedScalar(fv.Scalar) == normalizedScalar(av.Scalar)
	}
	return eventindex.IsSofterThan(fv, av) && eventindex.IsSofterThan(av, fv)
}

func normalizedScalar(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return fmt.Sprint(v)
}
