package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	dgbatch "github.com/donnigundala/dg-batch"
	"github.com/redis/go-redis/v9"
)

// Driver is a Redis failed package driver. Each batch keeps its records in
// a hash keyed by package ID, and an index hash maps every ID to its batch.
type Driver struct {
	client *redis.Client
	prefix string
}

func init() {
	dgbatch.RegisterDriver("redis", func(config dgbatch.Config) (dgbatch.Driver, error) {
		driver, err := NewDriver(config)
		if err != nil {
			return nil, err
		}
		return driver, nil
	})
}

// Config represents the Redis driver configuration.
type Config struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// NewDriver creates a new Redis driver from the options of config.
func NewDriver(config dgbatch.Config) (*Driver, error) {
	var redisConfig Config
	if err := config.Decode(&redisConfig); err != nil {
		return nil, err
	}

	if redisConfig.Addr == "" {
		redisConfig.Addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:        redisConfig.Addr,
		Password:    redisConfig.Password,
		DB:          redisConfig.DB,
		DialTimeout: redisConfig.DialTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewDriverWithClient(client, config.Prefix), nil
}

// NewDriverWithClient creates a new Redis driver with an existing client.
func NewDriverWithClient(client *redis.Client, prefix string) *Driver {
	if prefix == "" {
		prefix = "batch"
	}
	return &Driver{
		client: client,
		prefix: prefix,
	}
}

// Push stores a failed package, replacing a record with the same ID.
func (d *Driver) Push(ctx context.Context, pkg *dgbatch.FailedPackage) error {
	data, err := dgbatch.MarshalFailedPackage(pkg)
	if err != nil {
		return err
	}

	// A record moved to another batch must leave its old hash.
	previous, err := d.client.HGet(ctx, d.indexKey(), pkg.ID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	_, err = d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != "" && previous != pkg.Batch {
			pipe.HDel(ctx, d.failedKey(previous), pkg.ID)
		}
		pipe.HSet(ctx, d.failedKey(pkg.Batch), pkg.ID, data)
		pipe.HSet(ctx, d.indexKey(), pkg.ID, pkg.Batch)
		return nil
	})
	return err
}

// List returns the failed packages of a batch, oldest failure first.
func (d *Driver) List(ctx context.Context, batch string) ([]*dgbatch.FailedPackage, error) {
	values, err := d.client.HVals(ctx, d.failedKey(batch)).Result()
	if err != nil {
		return nil, err
	}

	list := make([]*dgbatch.FailedPackage, 0, len(values))
	for _, value := range values {
		pkg, err := dgbatch.UnmarshalFailedPackage([]byte(value))
		if err != nil {
			return nil, fmt.Errorf("failed to decode record of batch %s: %w", batch, err)
		}
		list = append(list, pkg)
	}

	slices.SortFunc(list, func(a, b *dgbatch.FailedPackage) int {
		if c := a.FailedAt.Compare(b.FailedAt); c != 0 {
			return c
		}
		return a.Index - b.Index
	})
	return list, nil
}

// Get gets a failed package by ID.
func (d *Driver) Get(ctx context.Context, id string) (*dgbatch.FailedPackage, error) {
	batch, err := d.batchOf(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := d.client.HGet(ctx, d.failedKey(batch), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, dgbatch.ErrPackageNotFound
	}
	if err != nil {
		return nil, err
	}

	return dgbatch.UnmarshalFailedPackage(data)
}

// Delete deletes a failed package.
func (d *Driver) Delete(ctx context.Context, id string) error {
	batch, err := d.batchOf(ctx, id)
	if err != nil {
		return err
	}

	_, err = d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, d.failedKey(batch), id)
		pipe.HDel(ctx, d.indexKey(), id)
		return nil
	})
	return err
}

// Size returns the number of failed packages of a batch.
func (d *Driver) Size(ctx context.Context, batch string) (int64, error) {
	return d.client.HLen(ctx, d.failedKey(batch)).Result()
}

// Close closes the Redis connection.
func (d *Driver) Close() error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *Driver) batchOf(ctx context.Context, id string) (string, error) {
	batch, err := d.client.HGet(ctx, d.indexKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return "", dgbatch.ErrPackageNotFound
	}
	return batch, err
}

// Helper methods for key generation
func (d *Driver) failedKey(batch string) string {
	return fmt.Sprintf("%s:failed:%s", d.prefix, batch)
}

func (d *Driver) indexKey() string {
	return fmt.Sprintf("%s:failed:index", d.prefix)
}
