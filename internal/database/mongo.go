package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InitMongo connects to the document store holding call detail records.
func InitMongo(ctx context.Context) (*mongo.Database, error) {
	uri := getEnv("MONGO_URI", "mongodb://localhost:27017")
	dbName := getEnv("MONGO_DB", "campaign_engine")

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping failed: %w", err)
	}

	db := client.Database(dbName)

	// Unique index on call_id so an initiated event can never create two
	// records for the same call.
	indexCtx, cancelIdx := context.WithTimeout(ctx, 10*time.Second)
	defer cancelIdx()
	_, err = db.Collection("call_detail_records").Indexes().CreateMany(indexCtx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "call_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "started_at", Value: -1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create CDR indexes: %w", err)
	}

	logrus.Info("MongoDB connection established")
	return db, nil
}
