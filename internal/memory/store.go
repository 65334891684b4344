package memory

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store manages the three memory journals under one directory.
type Store struct {
	conversations *journal[ConversationRecord]
	investments   *journal[InvestmentRecord]
	research      *journal[ResearchRecord]
}

// NewStore creates a memory store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{
		conversations: newJournal[ConversationRecord](filepath.Join(dir, "conversations.json"), MaxConversations),
		investments:   newJournal[InvestmentRecord](filepath.Join(dir, "investments.json"), MaxInvestments),
		research:      newJournal[ResearchRecord](filepath.Join(dir, "research.json"), MaxResearch),
	}
}

// SaveConversation appends a conversation record, assigning an ID and
// timestamp when absent.
func (s *Store) SaveConversation(rec ConversationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return s.conversations.append(rec)
}

// SaveInvestment appends an investment record.
func (s *Store) SaveInvestment(rec InvestmentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return s.investments.append(rec)
}

// SaveResearch appends a research record.
func (s *Store) SaveResearch(rec ResearchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return s.research.append(rec)
}

// RecallRelevant returns up to n conversation records ranked by keyword
// relevance to the query. Each record is scored by counting whole-word
// matches between the query and the record's searchable text (query,
// summary and tags), normalized by the record's word count. When nothing
// matches, the n most recent records are returned instead of an empty
// result.
func (s *Store) RecallRelevant(query string, n int) ([]ConversationRecord, error) {
	records, err := s.conversations.load()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || n <= 0 {
		return nil, nil
	}

	queryWords := tokenize(query)
	var scored []ScoredConversation
	for _, rec := range records {
		text := rec.Query + " " + rec.Summary + " " + strings.Join(rec.Tags, " ")
		recordWords := tokenize(text)
		if len(recordWords) == 0 {
			continue
		}

		matches := 0
		for _, qw := range queryWords {
			for _, rw := range recordWords {
				if qw == rw {
					matches++
				}
			}
		}
		if matches > 0 {
			scored = append(scored, ScoredConversation{
				Record: rec,
				Score:  float64(matches) / float64(len(recordWords)),
			})
		}
	}

	if len(scored) == 0 {
		return mostRecentConversations(records, n), nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > n {
		scored = scored[:n]
	}
	out := make([]ConversationRecord, len(scored))
	for i, sc := range scored {
		out[i] = sc.Record
	}
	return out, nil
}

// InvestmentFilter narrows RecallInvestments. Zero values match everything.
type InvestmentFilter struct {
	Symbol string
	Action string
}

// RecallInvestments returns up to n investment records matching the filter,
// most recent first.
func (s *Store) RecallInvestments(filter InvestmentFilter, n int) ([]InvestmentRecord, error) {
	records, err := s.investments.load()
	if err != nil {
		return nil, err
	}

	var matched []InvestmentRecord
	for _, rec := range records {
		if filter.Symbol != "" && !strings.EqualFold(rec.Symbol, filter.Symbol) {
			continue
		}
		if filter.Action != "" && !strings.EqualFold(rec.Action, filter.Action) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if len(matched) > n {
		matched = matched[:n]
	}
	return matched, nil
}

// ResearchFilter narrows RecallResearch. Zero values match everything.
type ResearchFilter struct {
	Niche string
	Tier  string
}

// RecallResearch returns up to n research records matching the filter,
// most recent first.
func (s *Store) RecallResearch(filter ResearchFilter, n int) ([]ResearchRecord, error) {
	records, err := s.research.load()
	if err != nil {
		return nil, err
	}

	var matched []ResearchRecord
	for _, rec := range records {
		if filter.Niche != "" && !strings.Contains(strings.ToLower(rec.Niche), strings.ToLower(filter.Niche)) {
			continue
		}
		if filter.Tier != "" && !strings.EqualFold(rec.Tier, filter.Tier) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if len(matched) > n {
		matched = matched[:n]
	}
	return matched, nil
}

// Prune removes records older than the given age from every journal, then
// re-applies each journal's count cap. Returns the total removed.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	convs, err := s.conversations.load()
	if err != nil {
		return 0, fmt.Errorf("prune conversations: %w", err)
	}
	kept := convs[:0:0]
	for _, r := range convs {
		if r.Timestamp.After(cutoff) {
			kept = append(kept, r)
		}
	}
	if len(kept) > MaxConversations {
		kept = kept[len(kept)-MaxConversations:]
	}
	removed += len(convs) - len(kept)
	if err := s.conversations.rewrite(kept); err != nil {
		return removed, err
	}

	invs, err := s.investments.load()
	if err != nil {
		return removed, fmt.Errorf("prune investments: %w", err)
	}
	keptInv := invs[:0:0]
	for _, r := range invs {
		if r.Timestamp.After(cutoff) {
			keptInv = append(keptInv, r)
		}
	}
	if len(keptInv) > MaxInvestments {
		keptInv = keptInv[len(keptInv)-MaxInvestments:]
	}
	removed += len(invs) - len(keptInv)
	if err := s.investments.rewrite(keptInv); err != nil {
		return removed, err
	}

	res, err := s.research.load()
	if err != nil {
		return removed, fmt.Errorf("prune research: %w", err)
	}
	keptRes := res[:0:0]
	for _, r := range res {
		if r.Timestamp.After(cutoff) {
			keptRes = append(keptRes, r)
		}
	}
	if len(keptRes) > MaxResearch {
		keptRes = keptRes[len(keptRes)-MaxResearch:]
	}
	removed += len(res) - len(keptRes)
	if err := s.research.rewrite(keptRes); err != nil {
		return removed, err
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Msg("memory pruned")
	}
	return removed, nil
}

// mostRecentConversations returns the n newest records by timestamp.
func mostRecentConversations(records []ConversationRecord, n int) []ConversationRecord {
	sorted := make([]ConversationRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// tokenize lowercases and splits text into whole words, dropping
// punctuation.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	return fields
}
