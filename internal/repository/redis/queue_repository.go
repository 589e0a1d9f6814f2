package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/repository"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
)

const (
	defaultKeyPrefix    = "barberqueue"
	defaultMaxTxRetries = 5
)

// Returns every entry hash in ZSET order as one atomic read.
var listScript = redis.NewScript(`
	local ids = redis.call('ZRANGE', KEYS[1], 0, -1)
	local out = {}
	for i, id in ipairs(ids) do
		out[i] = redis.call('HGETALL', ARGV[1] .. id)
	end
	return out
`)

// Merges field/value pairs into an existing entry hash, keeping the order
// index in step with order_key. Returns 0 when the entry does not exist.
var updateScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return 0
	end
	for i = 2, #ARGV, 2 do
		redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
		if ARGV[i] == 'order_key' then
			redis.call('ZADD', KEYS[2], ARGV[i + 1], ARGV[1])
		end
	end
	redis.call('INCR', KEYS[3])
	return 1
`)

type Options struct {
	KeyPrefix    string
	MaxTxRetries int
}

type redisQueueRepository struct {
	cli  *redis.Client
	l    logger.Logger
	opts Options
}

// NewQueueRepository returns a store that also implements
// repository.AtomicAdmitter and repository.AtomicReorderer.
func NewQueueRepository(cli *redis.Client, l logger.Logger, opts Options) repository.QueueRepository {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultKeyPrefix
	}
	if opts.MaxTxRetries <= 0 {
		opts.MaxTxRetries = defaultMaxTxRetries
	}
	return &redisQueueRepository{
		cli:  cli,
		l:    l,
		opts: opts,
	}
}

func (r *redisQueueRepository) Create(ctx context.Context, e *models.Entry) (string, error) {
	id := newID()

	if _, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.queueInsert(ctx, pipe, id, e)
		return nil
	}); err != nil {
		r.l.Errorf(ctx, "redisQueueRepository.Create: %v", err)
		return "", err
	}

	r.publish(ctx, id)
	return id, nil
}

func (r *redisQueueRepository) CreateChecked(ctx context.Context, e *models.Entry, check func([]models.Entry) error) (string, error) {
	id := newID()

	txf := func(tx *redis.Tx) error {
		entries, err := r.list(ctx, tx)
		if err != nil {
			return err
		}
		if err := check(entries); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.queueInsert(ctx, pipe, id, e)
			return nil
		})
		return err
	}

	if err := r.watch(ctx, "CreateChecked", txf); err != nil {
		return "", err
	}

	r.publish(ctx, id)
	return id, nil
}

func (r *redisQueueRepository) ReorderChecked(ctx context.Context, id string, plan func([]models.Entry) (int64, error)) error {
	changed := false

	txf := func(tx *redis.Tx) error {
		changed = false

		entries, err := r.list(ctx, tx)
		if err != nil {
			return err
		}

		key, err := plan(entries)
		if errors.Is(err, repository.ErrNoChange) {
			return nil
		}
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.entryKey(id), fieldOrderKey, key)
			pipe.ZAdd(ctx, r.orderKey(), redis.Z{Score: float64(key), Member: id})
			pipe.Incr(ctx, r.versionKey())
			return nil
		})
		if err == nil {
			changed = true
		}
		return err
	}

	if err := r.watch(ctx, "ReorderChecked", txf); err != nil {
		return err
	}

	if changed {
		r.publish(ctx, id)
	}
	return nil
}

func (r *redisQueueRepository) List(ctx context.Context) ([]models.Entry, error) {
	entries, err := r.list(ctx, r.cli)
	if err != nil {
		r.l.Errorf(ctx, "redisQueueRepository.List: %v", err)
		return nil, err
	}
	return entries, nil
}

func (r *redisQueueRepository) Get(ctx context.Context, id string) (*models.Entry, error) {
	vals, err := r.cli.HGetAll(ctx, r.entryKey(id)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisQueueRepository.Get: %v", err)
		return nil, err
	}
	if len(vals) == 0 {
		return nil, repository.ErrNotFound
	}

	e, err := decodeEntry(vals)
	if err != nil {
		r.l.Errorf(ctx, "redisQueueRepository.Get: %v", err)
		return nil, err
	}
	return &e, nil
}

func (r *redisQueueRepository) Update(ctx context.Context, id string, u models.EntryUpdate) error {
	if u.IsEmpty() {
		n, err := r.cli.Exists(ctx, r.entryKey(id)).Result()
		if err != nil {
			r.l.Errorf(ctx, "redisQueueRepository.Update: %v", err)
			return err
		}
		if n == 0 {
			return repository.ErrNotFound
		}
		return nil
	}

	args := append([]interface{}{id}, encodeUpdate(u)...)

	res, err := updateScript.Run(ctx, r.cli, []string{r.entryKey(id), r.orderKey(), r.versionKey()}, args...).Int()
	if err != nil {
		r.l.Errorf(ctx, "redisQueueRepository.Update: %v", err)
		return err
	}
	if res == 0 {
		return repository.ErrNotFound
	}

	r.publish(ctx, id)
	return nil
}

func (r *redisQueueRepository) Ping(ctx context.Context) error {
	return r.cli.Ping(ctx).Err()
}

func (r *redisQueueRepository) queueInsert(ctx context.Context, pipe redis.Pipeliner, id string, e *models.Entry) {
	cp := *e
	cp.ID = id
	pipe.HSet(ctx, r.entryKey(id), encodeEntry(&cp))
	pipe.ZAdd(ctx, r.orderKey(), redis.Z{Score: float64(cp.OrderKey), Member: id})
	pipe.Incr(ctx, r.versionKey())
}

// watch runs txf optimistically against the version key, retrying while
// other writers get in first.
func (r *redisQueueRepository) watch(ctx context.Context, op string, txf func(tx *redis.Tx) error) error {
	for attempt := 0; attempt < r.opts.MaxTxRetries; attempt++ {
		err := r.cli.Watch(ctx, txf, r.versionKey())
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			r.l.Debugf(ctx, "redisQueueRepository.%s: attempt %d lost the race, retrying", op, attempt+1)
			continue
		}
		return err
	}

	r.l.Warnf(ctx, "redisQueueRepository.%s: gave up after %d attempts", op, r.opts.MaxTxRetries)
	return repository.ErrConflict
}

func (r *redisQueueRepository) list(ctx context.Context, s redis.Scripter) ([]models.Entry, error) {
	res, err := listScript.Run(ctx, s, []string{r.orderKey()}, r.entryKey("")).Slice()
	if err != nil {
		return nil, err
	}

	entries := make([]models.Entry, 0, len(res))
	for _, raw := range res {
		flat, ok := raw.([]interface{})
		if !ok || len(flat) == 0 {
			continue
		}
		e, err := decodeEntry(pairsToMap(flat))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *redisQueueRepository) publish(ctx context.Context, id string) {
	if err := r.cli.Publish(ctx, r.changesChannel(), id).Err(); err != nil {
		r.l.Warnf(ctx, "redisQueueRepository.publish: %v", err)
	}
}

func (r *redisQueueRepository) entryKey(id string) string {
	return fmt.Sprintf("%s:queue:entry:%s", r.opts.KeyPrefix, id)
}

func (r *redisQueueRepository) orderKey() string {
	return fmt.Sprintf("%s:queue:order", r.opts.KeyPrefix)
}

func (r *redisQueueRepository) versionKey() string {
	return fmt.Sprintf("%s:queue:version", r.opts.KeyPrefix)
}

func (r *redisQueueRepository) changesChannel() string {
	return fmt.Sprintf("%s:queue:changes", r.opts.KeyPrefix)
}

func pairsToMap(flat []interface{}) map[string]string {
	m := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		m[k] = v
	}
	return m
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
