package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

// Redis layout:
//
//	{prefix}ticket:{id}             hash with the ticket fields
//	{prefix}tickets:created         sorted set of ids scored by created_at (unix µs)
//	{prefix}tickets:status:{STATUS} set of ids currently in STATUS
//
// Mutations run as Lua scripts so each one is applied atomically by the server.

var updateOneScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
local old = redis.call('HGET', KEYS[1], 'status')
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'updated_at', ARGV[3])
if ARGV[4] == '1' then
  redis.call('HSET', KEYS[1], 'solution', ARGV[5])
end
if ARGV[6] == '1' then
  redis.call('HSET', KEYS[1], 'cancellation_reason', ARGV[7])
end
if old then
  redis.call('SREM', KEYS[2] .. old, ARGV[1])
end
redis.call('SADD', KEYS[2] .. ARGV[2], ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

var updateManyScript = redis.NewScript(`
local ids
if ARGV[1] ~= '' then
  ids = redis.call('SMEMBERS', KEYS[2] .. ARGV[1])
else
  local lo = ARGV[2]
  local hi = ARGV[3]
  if lo == '' then lo = '-inf' end
  if hi == '' then hi = '+inf' end
  ids = redis.call('ZRANGEBYSCORE', KEYS[1], lo, hi)
end
local count = 0
for _, id in ipairs(ids) do
  local key = KEYS[3] .. id
  local score = redis.call('ZSCORE', KEYS[1], id)
  local old = redis.call('HGET', key, 'status')
  local ok = score ~= false and old ~= false
  if ok and ARGV[1] ~= '' and old ~= ARGV[1] then ok = false end
  if ok and ARGV[2] ~= '' and tonumber(score) < tonumber(ARGV[2]) then ok = false end
  if ok and ARGV[3] ~= '' and tonumber(score) > tonumber(ARGV[3]) then ok = false end
  if ok then
    redis.call('HSET', key, 'status', ARGV[4], 'updated_at', ARGV[5])
    if ARGV[6] == '1' then redis.call('HSET', key, 'solution', ARGV[7]) end
    if ARGV[8] == '1' then redis.call('HSET', key, 'cancellation_reason', ARGV[9]) end
    redis.call('SREM', KEYS[2] .. old, id)
    redis.call('SADD', KEYS[2] .. ARGV[4], id)
    count = count + 1
  end
end
return count
`)

type redisTicketRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisTicketRepository returns a repository storing tickets in Redis under prefix.
func NewRedisTicketRepository(client *redis.Client, prefix string) TicketRepository {
	return &redisTicketRepository{client: client, prefix: prefix}
}

func (r *redisTicketRepository) ticketKey(id string) string { return r.prefix + "ticket:" + id }
func (r *redisTicketRepository) ticketPrefix() string       { return r.prefix + "ticket:" }
func (r *redisTicketRepository) createdKey() string         { return r.prefix + "tickets:created" }
func (r *redisTicketRepository) statusPrefix() string       { return r.prefix + "tickets:status:" }

func (r *redisTicketRepository) Insert(ctx context.Context, ticket *domain.Ticket) (string, error) {
	id := uuid.NewString()
	// Scores hold whole microseconds; storing the same precision keeps range queries exact.
	createdAt := domain.Timestamp(ticket.CreatedAt)
	fields := map[string]any{
		"id":         id,
		"topic":      ticket.Topic,
		"text":       ticket.Text,
		"status":     string(ticket.Status),
		"created_at": formatTime(createdAt),
		"updated_at": formatTime(domain.Timestamp(ticket.UpdatedAt)),
	}
	if ticket.Solution != nil {
		fields["solution"] = *ticket.Solution
	}
	if ticket.CancellationReason != nil {
		fields["cancellation_reason"] = *ticket.CancellationReason
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.ticketKey(id), fields)
		pipe.ZAdd(ctx, r.createdKey(), redis.Z{Score: float64(createdAt.UnixMicro()), Member: id})
		pipe.SAdd(ctx, r.statusPrefix()+string(ticket.Status), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("insert ticket: %w", err)
	}
	return id, nil
}

func (r *redisTicketRepository) UpdateByID(ctx context.Context, id string, mutation domain.TicketMutation) (*domain.Ticket, error) {
	solFlag, sol := optionalArg(mutation.Solution)
	reasonFlag, reason := optionalArg(mutation.CancellationReason)

	values, err := updateOneScript.Run(ctx, r.client,
		[]string{r.ticketKey(id), r.statusPrefix()},
		id, string(mutation.Status), formatTime(mutation.UpdatedAt), solFlag, sol, reasonFlag, reason,
	).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update ticket %s: %w", id, err)
	}
	ticket, err := ticketFromHash(pairsToMap(values))
	if err != nil {
		return nil, fmt.Errorf("decode ticket %s: %w", id, err)
	}
	return ticket, nil
}

func (r *redisTicketRepository) UpdateManyWhere(ctx context.Context, filter domain.TicketFilter, mutation domain.TicketMutation) (int64, error) {
	status := ""
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	solFlag, sol := optionalArg(mutation.Solution)
	reasonFlag, reason := optionalArg(mutation.CancellationReason)

	count, err := updateManyScript.Run(ctx, r.client,
		[]string{r.createdKey(), r.statusPrefix(), r.ticketPrefix()},
		status, minScoreArg(filter.CreatedFrom), maxScoreArg(filter.CreatedTo),
		string(mutation.Status), formatTime(mutation.UpdatedAt), solFlag, sol, reasonFlag, reason,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("update tickets: %w", err)
	}
	return count, nil
}

func (r *redisTicketRepository) FindWhere(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if filter.CreatedFrom != nil {
		rng.Min = minScoreArg(filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		rng.Max = maxScoreArg(filter.CreatedTo)
	}
	ids, err := r.client.ZRangeByScore(ctx, r.createdKey(), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.ticketKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}

	result := []domain.Ticket{}
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		ticket, err := ticketFromHash(fields)
		if err != nil {
			return nil, err
		}
		if filter.Matches(*ticket) {
			result = append(result, *ticket)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func ticketFromHash(fields map[string]string) (*domain.Ticket, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	status := domain.TicketStatus(fields["status"])
	if !status.Valid() {
		return nil, fmt.Errorf("ticket %s: unknown status %q", fields["id"], status)
	}
	ticket := &domain.Ticket{
		ID:        fields["id"],
		Topic:     fields["topic"],
		Text:      fields["text"],
		Status:    status,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}
	if sol, ok := fields["solution"]; ok {
		ticket.Solution = &sol
	}
	if reason, ok := fields["cancellation_reason"]; ok {
		ticket.CancellationReason = &reason
	}
	return ticket, nil
}

func pairsToMap(values []any) map[string]string {
	fields := make(map[string]string, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		key, _ := values[i].(string)
		val, _ := values[i+1].(string)
		fields[key] = val
	}
	return fields
}

func optionalArg(val *string) (string, string) {
	if val == nil {
		return "0", ""
	}
	return "1", *val
}

// minScoreArg rounds a lower bound up to the next whole microsecond, so
// "score >= bound" selects exactly the records created at or after t.
func minScoreArg(t *time.Time) string {
	if t == nil {
		return ""
	}
	us := t.UnixMicro()
	if t.After(time.UnixMicro(us)) {
		us++
	}
	return strconv.FormatInt(us, 10)
}

// maxScoreArg rounds an upper bound down to a whole microsecond.
func maxScoreArg(t *time.Time) string {
	if t == nil {
		return ""
	}
	us := t.UnixMicro()
	if t.Before(time.UnixMicro(us)) {
		us--
	}
	return strconv.FormatInt(us, 10)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
