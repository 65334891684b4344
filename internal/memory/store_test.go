package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveConversationAssignsIDAndTimestamp(t *testing.T) {
	s := NewStore(t.TempDir())

	require.NoError(t, s.SaveConversation(ConversationRecord{Query: "hello", Summary: "greeting"}))

	recs, err := s.RecallRelevant("hello", 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NotEmpty(t, recs[0].ID)
	assert.False(t, recs[0].Timestamp.IsZero())
}

func TestRecallRelevantRanksByWordMatches(t *testing.T) {
	s := NewStore(t.TempDir())

	require.NoError(t, s.SaveConversation(ConversationRecord{
		Query:   "AAPL earnings report analysis",
		Summary: "discussed AAPL earnings beat",
	}))
	require.NoError(t, s.SaveConversation(ConversationRecord{
		Query:   "weekend hiking trails",
		Summary: "trail recommendations",
	}))

	recs, err := s.RecallRelevant("AAPL earnings", 5)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Contains(t, recs[0].Query, "AAPL")
}

func TestRecallRelevantCapsResults(t *testing.T) {
	s := NewStore(t.TempDir())
	for i := 0; i < 10; i++ {
		require.NoError(t, s.SaveConversation(ConversationRecord{
			Query: fmt.Sprintf("AAPL question %d", i),
		}))
	}

	recs, err := s.RecallRelevant("AAPL earnings", 5)
	require.NoError(t, err)
	assert.Len(t, recs, 5)
}

func TestRecallRelevantFallsBackToMostRecent(t *testing.T) {
	s := NewStore(t.TempDir())
	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		require.NoError(t, s.SaveConversation(ConversationRecord{
			Query:     fmt.Sprintf("topic %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recs, err := s.RecallRelevant("zzz qqq", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// Most recent first.
	assert.Equal(t, "topic 3", recs[0].Query)
	assert.Equal(t, "topic 2", recs[1].Query)
}

func TestInvestmentCapEvictsOldestFirst(t *testing.T) {
	s := NewStore(t.TempDir())

	for i := 0; i < MaxInvestments+1; i++ {
		require.NoError(t, s.SaveInvestment(InvestmentRecord{
			ID:     fmt.Sprintf("rec-%d", i),
			Symbol: "AAPL",
		}))
	}

	recs, err := s.investments.load()
	require.NoError(t, err)
	assert.Len(t, recs, MaxInvestments)
	// The first write was evicted; the second is now the oldest.
	assert.Equal(t, "rec-1", recs[0].ID)
	assert.Equal(t, fmt.Sprintf("rec-%d", MaxInvestments), recs[len(recs)-1].ID)
}

func TestRecallInvestmentsFiltersAndTruncates(t *testing.T) {
	s := NewStore(t.TempDir())
	base := time.Now().UTC()

	require.NoError(t, s.SaveInvestment(InvestmentRecord{Symbol: "AAPL", Action: "BUY", Timestamp: base}))
	require.NoError(t, s.SaveInvestment(InvestmentRecord{Symbol: "TSLA", Action: "SELL", Timestamp: base.Add(time.Minute)}))
	require.NoError(t, s.SaveInvestment(InvestmentRecord{Symbol: "AAPL", Action: "HOLD", Timestamp: base.Add(2 * time.Minute)}))

	recs, err := s.RecallInvestments(InvestmentFilter{Symbol: "aapl"}, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "HOLD", recs[0].Action) // most recent first

	recs, err = s.RecallInvestments(InvestmentFilter{}, 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestPruneRemovesOldRecords(t *testing.T) {
	s := NewStore(t.TempDir())
	now := time.Now().UTC()

	require.NoError(t, s.SaveConversation(ConversationRecord{Query: "old", Timestamp: now.AddDate(0, 0, -40)}))
	require.NoError(t, s.SaveConversation(ConversationRecord{Query: "new", Timestamp: now}))
	require.NoError(t, s.SaveResearch(ResearchRecord{Niche: "stale", Timestamp: now.AddDate(0, 0, -40)}))

	removed, err := s.Prune(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	recs, err := s.RecallRelevant("new", 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "new", recs[0].Query)
}

func TestCacheInvalidatedByFileModification(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.SaveConversation(ConversationRecord{Query: "first"}))

	// Another process rewrites the file behind our back.
	path := filepath.Join(dir, "conversations.json")
	data := `[{"id":"x","timestamp":"2026-01-02T03:04:05Z","query":"replaced","summary":""}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	// Force a newer mtime in case the filesystem's resolution is coarse.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	recs, err := s.RecallRelevant("replaced", 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "replaced", recs[0].Query)
}
