package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	"github.com/jimacampos/deskagent/features/devops"
	devopsinmem "github.com/jimacampos/deskagent/features/devops/inmem"
	devopsredis "github.com/jimacampos/deskagent/features/devops/redis"
	"github.com/jimacampos/deskagent/features/tickets"
	ticketsinmem "github.com/jimacampos/deskagent/features/tickets/inmem"
	ticketsmongo "github.com/jimacampos/deskagent/features/tickets/mongo"
	"github.com/jimacampos/deskagent/internal/config"
)

// buildTicketStore returns the selected ticket store and a best-effort
// closer for its connections. Close failures are logged at debug level and
// never escalated.
func buildTicketStore(ctx context.Context, backend string) (tickets.Store, func(), error) {
	switch backend {
	case "inmem":
		return ticketsinmem.New(), func() {}, nil

	case "mongo":
		uri, err := config.Require("", "MONGO_URI", "MongoDB connection URI")
		if err != nil {
			return nil, nil, err
		}
		database, err := config.Require("", "MONGO_DATABASE", "MongoDB database name")
		if err != nil {
			return nil, nil, err
		}
		client, err := mongodriver.Connect(mongooptions.Client().ApplyURI(uri))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to mongo: %w", err)
		}
		closer := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Debugf(ctx, "disconnect mongo: %v", err)
			}
		}
		store, err := ticketsmongo.New(ticketsmongo.Options{Client: client, Database: database})
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("build mongo ticket store: %w", err)
		}
		if err := store.Ping(ctx); err != nil {
			closer()
			return nil, nil, fmt.Errorf("connect to mongo: %w", err)
		}
		return store, closer, nil

	default:
		return nil, nil, fmt.Errorf("invalid tickets backend %q (valid backends: inmem, mongo)", backend)
	}
}

// buildBoard returns the selected CI/CD board and a best-effort closer. The
// in-memory board ships with demo fixtures so the board tools answer out of
// the box.
func buildBoard(ctx context.Context, backend string) (devops.Source, func(), error) {
	switch backend {
	case "inmem":
		return devopsinmem.Demo(), func() {}, nil

	case "redis":
		addr, err := config.Require("", "REDIS_ADDR", "Redis address")
		if err != nil {
			return nil, nil, err
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		closer := func() {
			if err := rdb.Close(); err != nil {
				log.Debugf(ctx, "close redis: %v", err)
			}
		}
		board, err := devopsredis.New(devopsredis.Options{Redis: rdb})
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("build redis board: %w", err)
		}
		if err := board.Ping(ctx); err != nil {
			closer()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return board, closer, nil

	default:
		return nil, nil, fmt.Errorf("invalid board backend %q (valid backends: inmem, redis)", backend)
	}
}
