package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
)

type Options struct {
	Driver string

	Dir string

	RedisAddr     string
	RedisPassword string
	RedisPrefix   string

	MongoURI    string
	MongoDBName string
}

// Open builds the backend named by opts.Driver and checks it is reachable.
func Open(ctx context.Context, opts Options, log logrus.FieldLogger) (Storage, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemory(), nil

	case DriverFile:
		return NewFile(opts.Dir, log)

	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       0,
		})
		s := NewRedis(client, opts.RedisPrefix, log)
		if err := s.Initialize(ctx, 10); err != nil {
			client.Close()
			return nil, err
		}
		return s, nil

	case DriverMongo:
		db, err := ConnectMongoDB(ctx, opts.MongoURI, opts.MongoDBName)
		if err != nil {
			return nil, err
		}
		s := NewMongo(db, log)
		if err := s.CreateIndexes(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
