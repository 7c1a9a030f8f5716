package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
)

// AuditLogger records admin mutations and completed purchases to a
// side collection. It is optional and best-effort; failures are logged
// and never fail the originating request.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	Actor     string    `bson:"actor"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action, actor string, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Actor:     actor,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return err
	}
	return nil
}

func (a *AuditLogger) LogPurchase(ctx context.Context, requestID, holderID string, seatIDs []string, total int64) error {
	data := map[string]interface{}{
		"request_id": requestID,
		"seat_ids":   seatIDs,
		"total":      total,
	}
	return a.LogEvent(ctx, "purchase.confirmed", holderID, data)
}

func (a *AuditLogger) LogSeatUpdate(ctx context.Context, seatIDs, missing []string) error {
	data := map[string]interface{}{
		"seat_ids": seatIDs,
		"missing":  missing,
	}
	return a.LogEvent(ctx, "seat.admin_update", "admin", data)
}
