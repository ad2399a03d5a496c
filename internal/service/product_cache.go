package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"poscore/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	productCachePrefix = "product:barcode:"
	productGenPrefix   = "product:gen:"
)

// ProductCache keeps barcode lookups off the database during scanning.
// Entries carry stock, so every stock or catalog change invalidates them.
//
// Each barcode has a generation that Invalidate bumps. Get returns the
// generation seen before the database read, and Set drops the write if the
// generation moved in between, so a lookup racing a sale cannot re-cache the
// pre-sale stock.
type ProductCache interface {
	Get(ctx context.Context, barcode string) (resp *dto.ProductResponse, gen int64, hit bool)
	Set(ctx context.Context, p *dto.ProductResponse, gen int64)
	Invalidate(ctx context.Context, barcodes ...string)
}

type redisProductCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisProductCache(rdb *redis.Client, ttl time.Duration) ProductCache {
	return &redisProductCache{rdb: rdb, ttl: ttl}
}

func (c *redisProductCache) Get(ctx context.Context, barcode string) (*dto.ProductResponse, int64, bool) {
	var entry, gen *redis.StringCmd
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		entry = pipe.Get(ctx, productCachePrefix+barcode)
		gen = pipe.Get(ctx, productGenPrefix+barcode)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false
	}
	version, _ := gen.Int64()

	cached, err := entry.Bytes()
	if err != nil {
		return nil, version, false
	}
	var resp dto.ProductResponse
	if err := json.Unmarshal(cached, &resp); err != nil {
		return nil, version, false
	}
	return &resp, version, true
}

// Set is best effort; a failed or skipped write only costs a database hit later.
func (c *redisProductCache) Set(ctx context.Context, p *dto.ProductResponse, gen int64) {
	if p.Barcode == nil {
		return
	}
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	genKey := productGenPrefix + *p.Barcode
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, productCachePrefix+*p.Barcode, b, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if err != nil {
		log.Debug().Err(err).Str("barcode", *p.Barcode).Msg("product cache set skipped")
	}
}

func (c *redisProductCache) Invalidate(ctx context.Context, barcodes ...string) {
	ctx = context.WithoutCancel(ctx)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, b := range barcodes {
			if b == "" {
				continue
			}
			pipe.Incr(ctx, productGenPrefix+b)
			pipe.Del(ctx, productCachePrefix+b)
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Strs("barcodes", barcodes).Msg("product cache invalidation failed")
	}
}

func invalidateProducts(ctx context.Context, cache ProductCache, barcodes []string) {
	if cache == nil || len(barcodes) == 0 {
		return
	}
	cache.Invalidate(ctx, barcodes...)
}
