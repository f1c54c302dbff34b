package archive

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clothpos/backend/internal/domain"
)

const (
	reportsCollection  = "daily_reports"
	messagesCollection = "messages"
)

// Mongo archives reports and bridge messages in MongoDB.
type Mongo struct {
	client *mongo.Client
	dbName string
	now    func() time.Time
}

// NewMongo connects and pings before returning.
func NewMongo(ctx context.Context, uri string, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return newMongoWithClient(client, dbName), nil
}

func newMongoWithClient(client *mongo.Client, dbName string) *Mongo {
	return &Mongo{client: client, dbName: dbName, now: time.Now}
}

func (m *Mongo) SaveDailyReport(ctx context.Context, report domain.DailyReport) error {
	collection := m.client.Database(m.dbName).Collection(reportsCollection)
	if _, err := collection.InsertOne(ctx, toReportDocument(report, m.now())); err != nil {
		return fmt.Errorf("insert daily report %s: %w", report.Date, err)
	}
	return nil
}

func (m *Mongo) RecordMessage(ctx context.Context, msg MessageRecord) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = m.now().UTC()
	}
	collection := m.client.Database(m.dbName).Collection(messagesCollection)
	if _, err := collection.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("insert message record: %w", err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
