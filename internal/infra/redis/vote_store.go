package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"balance-game-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// VoteStore keeps vote counters as one hash per question set:
//
//	HINCRBY balance:votes:{setID} {questionID}:A 1
//
// HINCRBY is atomic, so concurrent voters never overwrite each other.
type VoteStore struct {
	client *redis.Client
}

func NewVoteStore(client *redis.Client) *VoteStore {
	return &VoteStore{client: client}
}

const votesKeyPrefix = "balance:votes:"

func (s *VoteStore) GetVoteTally(ctx context.Context, questionID, questionSetID string) (domain.VoteTally, error) {
	vals, err := s.client.HMGet(ctx, votesKey(questionSetID), field(questionID, domain.ChoiceA), field(questionID, domain.ChoiceB)).Result()
	if err != nil {
		return domain.VoteTally{}, fmt.Errorf("%w: get vote tally: %v", domain.ErrPersistence, err)
	}
	return domain.VoteTally{VotesA: toInt(vals[0]), VotesB: toInt(vals[1])}, nil
}

func (s *VoteStore) UpsertVoteTally(ctx context.Context, questionID, questionSetID string, choice domain.Choice) error {
	if !choice.Valid() {
		return domain.ErrInvalidChoice
	}
	if err := s.client.HIncrBy(ctx, votesKey(questionSetID), field(questionID, choice), 1).Err(); err != nil {
		return fmt.Errorf("%w: increment vote: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *VoteStore) GetVoteTalliesForSet(ctx context.Context, questionSetID string) (map[string]domain.VoteTally, error) {
	all, err := s.client.HGetAll(ctx, votesKey(questionSetID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: get set tallies: %v", domain.ErrPersistence, err)
	}
	out := make(map[string]domain.VoteTally)
	for f, v := range all {
		questionID, choice, ok := splitField(f)
		if !ok {
			continue
		}
		n, _ := strconv.Atoi(v)
		tally := out[questionID]
		if choice == domain.ChoiceA {
			tally.VotesA += n
		} else {
			tally.VotesB += n
		}
		out[questionID] = tally
	}
	return out, nil
}

func (s *VoteStore) GetVoteTalliesForPrefix(ctx context.Context, questionIDs []string, groupPrefix string) (map[string]domain.VoteTally, error) {
	out := make(map[string]domain.VoteTally, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}
	fields := make([]string, 0, len(questionIDs)*2)
	for _, id := range questionIDs {
		fields = append(fields, field(id, domain.ChoiceA), field(id, domain.ChoiceB))
	}

	iter := s.client.Scan(ctx, 0, votesKeyPrefix+escapeGlob(groupPrefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		vals, err := s.client.HMGet(ctx, iter.Val(), fields...).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: get pooled tallies: %v", domain.ErrPersistence, err)
		}
		for i, id := range questionIDs {
			a, b := toInt(vals[2*i]), toInt(vals[2*i+1])
			if a == 0 && b == 0 {
				continue
			}
			tally := out[id]
			tally.VotesA += a
			tally.VotesB += b
			out[id] = tally
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan vote groups: %v", domain.ErrPersistence, err)
	}
	return out, nil
}

func votesKey(questionSetID string) string {
	return votesKeyPrefix + questionSetID
}

func field(questionID string, choice domain.Choice) string {
	return questionID + ":" + string(choice)
}

func splitField(f string) (string, domain.Choice, bool) {
	i := strings.LastIndexByte(f, ':')
	if i < 0 {
		return "", "", false
	}
	choice := domain.Choice(f[i+1:])
	if !choice.Valid() {
		return "", "", false
	}
	return f[:i], choice, true
}

func toInt(v interface{}) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
