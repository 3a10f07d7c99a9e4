package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novafi/novafi/internal/entity"
)

func TestCacheStartsEmptyWithSeqZero(t *testing.T) {
	c := New[entity.Wallet]()

	snap := c.Current()
	require.Zero(t, snap.FetchSeq)
	require.Empty(t, snap.Items)
}

func TestCommitReplacesOnHigherSeq(t *testing.T) {
	c := New[string]()

	seq := c.NextSeq()
	ok := c.Commit(entity.Snapshot[string]{FetchSeq: seq, Items: []string{"a"}})
	require.True(t, ok)
	require.Equal(t, []string{"a"}, c.Current().Items)
	require.Equal(t, seq, c.Current().FetchSeq)
}

func TestCommitRejectsStaleSeqSilently(t *testing.T) {
	c := New[string]()

	first := c.NextSeq()
	second := c.NextSeq()

	// The later-issued read's response arrives first.
	require.True(t, c.Commit(entity.Snapshot[string]{FetchSeq: second, Items: []string{"fresh"}}))

	// The earlier-issued read arrives late; it must not overwrite.
	require.False(t, c.Commit(entity.Snapshot[string]{FetchSeq: first, Items: []string{"stale"}}))
	require.Equal(t, []string{"fresh"}, c.Current().Items)
	require.Equal(t, second, c.Current().FetchSeq)
}

func TestCommitRejectsEqualSeq(t *testing.T) {
	c := New[string]()

	seq := c.NextSeq()
	require.True(t, c.Commit(entity.Snapshot[string]{FetchSeq: seq, Items: []string{"one"}}))
	require.False(t, c.Commit(entity.Snapshot[string]{FetchSeq: seq, Items: []string{"two"}}))
	require.Equal(t, []string{"one"}, c.Current().Items)
}

func TestNextSeqStrictlyIncreasing(t *testing.T) {
	c := New[int]()

	prev := uint64(0)
	for i := 0; i < 100; i++ {
		seq := c.NextSeq()
		require.Greater(t, seq, prev)
		prev = seq
	}
}

func TestCommittedSeqNonDecreasingUnderConcurrentCommits(t *testing.T) {
	c := New[string]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		seq := c.NextSeq()
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			c.Commit(entity.Snapshot[string]{FetchSeq: seq, Items: []string{fmt.Sprintf("read-%d", seq)}})
		}(seq)
	}
	wg.Wait()

	// Regardless of arrival order, the highest issued seq wins.
	require.Equal(t, uint64(50), c.Current().FetchSeq)
	require.Equal(t, []string{"read-50"}, c.Current().Items)
}
