package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethcache/fetcher/pkg/eventindex"
)

func TestMatchesFilterEmptyFilterAlwaysMatches(t *testing.T) {
	e := Event{Args: eventindex.NewObject(map[string]eventindex.Value{
		"from": eventindex.NewScalar("0xaaa"),
	})}
	require.True(t, e.MatchesFilter(eventindex.Null()))
}

func TestMatchesFilterScalarEquality(t *testing.T) {
	e := Event{Args: eventindex.NewObject(map[string]eventindex.Value{
		"from": eventindex.NewScalar("0xAAA"),
	})}
	filter := eventindex.NewObject(map[string]eventindex.Value{
		"from": eventindex.NewScalar("0xaaa"),
	})
	require.True(t, e.MatchesFilter(filter))
}

func TestMatchesFilterListIsAnyOf(t *testing.T) {
	e := Event{Args: eventindex.NewObject(map[string]eventindex.Value{
		"from": eventindex.NewScalar("0xbbb"),
	})}
	filter := eventindex.NewObject(map[string]eventindex.Value{
		"from": eventindex.NewList([]eventindex.Value{
			eventindex.NewScalar("0xaaa"),
			eventindex.NewScalar("0xbbb"),
		}),
	})
	require.True(t, e.MatchesFilter(filter))

	filter2 := eventindex.NewObject(map[string]eventindex.Value{
		"from": eventindex.NewList([]eventindex.Value{eventindex.NewScalar("0xccc")}),
	})
	require.False(t, e.MatchesFilter(filter2))
}

func TestMatchesFilterMissingArgFails(t *testing.T) {
	e := Event{Args: eventindex.NewObject(map[string]eventindex.Value{
		"from": eventindex.NewScalar("0xaaa"),
	})}
	filter := eventindex.NewObject(map[string]eventindex.Value{
		"to": eventindex.NewScalar("0xbbb"),
	})
	require.False(t, e.MatchesFilter(filter))
}
