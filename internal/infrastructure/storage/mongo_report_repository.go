package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"linac-qc/internal/domain/entity"
	"linac-qc/internal/domain/port"
)

// ReportsCollection коллекция отчётов идентификации
const ReportsCollection = "leaf_position_reports"

// ConnectMongo подключается к MongoDB и проверяет соединение.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to ping mongo")
	}

	log.Infof("connected to mongo")
	return client, nil
}

// MongoReportRepository хранит отчёты в MongoDB
type MongoReportRepository struct {
	coll *mongo.Collection
}

// NewMongoReportRepository создаёт хранилище поверх базы db
func NewMongoReportRepository(db *mongo.Database) *MongoReportRepository {
	return &MongoReportRepository{coll: db.Collection(ReportsCollection)}
}

// Save сохраняет отчёт (upsert по ID)
func (r *MongoReportRepository) Save(ctx context.Context, report *entity.IdentificationReport) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": report.ID}, report, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrapf(err, "failed to save report %s", report.ID)
	}
	return nil
}

// Get возвращает отчёт по ID
func (r *MongoReportRepository) Get(ctx context.Context, id string) (*entity.IdentificationReport, error) {
	result := r.coll.FindOne(ctx, bson.M{"_id": id})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrReportNotFound
		}
		return nil, errors.Wrapf(err, "failed to read report %s", id)
	}

	report := &entity.IdentificationReport{}
	if err := result.Decode(report); err != nil {
		return nil, errors.Wrapf(err, "failed to decode report %s", id)
	}
	return report, nil
}

// Recent возвращает последние отчёты, новые первыми
func (r *MongoReportRepository) Recent(ctx context.Context, limit int) ([]*entity.IdentificationReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reports")
	}

	reports := []*entity.IdentificationReport{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, errors.Wrap(err, "failed to decode reports")
	}
	return reports, nil
}

// Проверка реализации интерфейса
var _ port.ReportRepository = (*MongoReportRepository)(nil)
