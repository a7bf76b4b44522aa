package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"studyplan/internal/apperr"
	appLog "studyplan/internal/log"
	"studyplan/internal/store"
)

// Key layout, per collection c:
//
//	<prefix>:<c>:docs              hash   id -> body
//	<prefix>:<c>:seq               string insertion counter
//	<prefix>:<c>:meta:<id>         hash   "seq" and "idx:<name>" -> key
//	<prefix>:<c>:idx:<name>:<key>  zset   id scored by seq
type Store struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

var _ store.Backend = (*Store)(nil)

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis addr is empty")
	}
	if opts.Prefix == "" {
		opts.Prefix = "studyplan"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "redis: ping")
	}

	s := NewWithClient(client, opts.Prefix)
	s.log.Info("redis store ready", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return s, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix, log: appLog.Named("store.redis")}
}

// Client exposes the underlying client so a Locker can share it.
func (s *Store) Client() *redis.Client { return s.client }

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) docsKey(c string) string     { return s.prefix + ":" + c + ":docs" }
func (s *Store) seqKey(c string) string      { return s.prefix + ":" + c + ":seq" }
func (s *Store) metaKey(c, id string) string { return s.prefix + ":" + c + ":meta:" + id }

func (s *Store) idxKey(c, name, key string) string {
	return s.prefix + ":" + c + ":idx:" + name + ":" + key
}

const idxField = "idx:"

func (s *Store) Insert(ctx context.Context, collection string, doc store.Doc) (string, error) {
	seq, err := s.client.Incr(ctx, s.seqKey(collection)).Result()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.docsKey(collection), id, doc.Body)
		s.writeIndexes(ctx, p, collection, id, seq, doc.Indexes)
		return nil
	})
	if err != nil {
		s.log.Error("insert failed", zap.String("collection", collection), zap.Error(err))
		return "", err
	}
	return id, nil
}

func (s *Store) writeIndexes(ctx context.Context, p redis.Pipeliner, collection, id string, seq int64, indexes map[string]string) {
	meta := map[string]interface{}{"seq": seq}
	for name, key := range indexes {
		p.ZAdd(ctx, s.idxKey(collection, name, key), &redis.Z{Score: float64(seq), Member: id})
		meta[idxField+name] = key
	}
	p.HSet(ctx, s.metaKey(collection, id), meta)
}

// dropIndexes removes id from every index recorded in its meta hash and
// returns the stored insertion sequence.
func (s *Store) dropIndexes(ctx context.Context, p redis.Pipeliner, collection, id string, meta map[string]string) int64 {
	var seq int64
	for field, val := range meta {
		if field == "seq" {
			seq, _ = strconv.ParseInt(val, 10, 64)
			continue
		}
		if len(field) > len(idxField) && field[:len(idxField)] == idxField {
			p.ZRem(ctx, s.idxKey(collection, field[len(idxField):], val), id)
		}
	}
	p.Del(ctx, s.metaKey(collection, id))
	return seq
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	body, err := s.client.HGet(ctx, s.docsKey(collection), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.Doc{}, apperr.ErrNotFound
	}
	if err != nil {
		return store.Doc{}, err
	}
	return store.Doc{ID: id, Body: body}, nil
}

func (s *Store) Replace(ctx context.Context, collection, id string, doc store.Doc) error {
	exists, err := s.client.HExists(ctx, s.docsKey(collection), id).Result()
	if err != nil {
		return err
	}
	if !exists {
		return apperr.ErrNotFound
	}
	meta, err := s.client.HGetAll(ctx, s.metaKey(collection, id)).Result()
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		seq := s.dropIndexes(ctx, p, collection, id, meta)
		p.HSet(ctx, s.docsKey(collection), id, doc.Body)
		s.writeIndexes(ctx, p, collection, id, seq, doc.Indexes)
		return nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	meta, err := s.client.HGetAll(ctx, s.metaKey(collection, id)).Result()
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		s.dropIndexes(ctx, p, collection, id, meta)
		p.HDel(ctx, s.docsKey(collection), id)
		return nil
	})
	return err
}

func (s *Store) QueryByIndex(ctx context.Context, collection, index, key string) ([]store.Doc, error) {
	ids, err := s.client.ZRange(ctx, s.idxKey(collection, index, key), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]store.Doc, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	vals, err := s.client.HMGet(ctx, s.docsKey(collection), ids...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		body, ok := v.(string)
		if !ok {
			// index entry without a document; skip it
			continue
		}
		out = append(out, store.Doc{ID: ids[i], Body: []byte(body)})
	}
	return out, nil
}
