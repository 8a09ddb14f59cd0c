package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

// CDRRepository persists call detail records in the document store.
// Every write is an upsert keyed by call_id: events may arrive out of
// order or more than once, and none of them may clobber data written by
// an earlier delivery.
type CDRRepository struct {
	coll *mongo.Collection
}

func NewCDRRepository(db *mongo.Database) *CDRRepository {
	return &CDRRepository{coll: db.Collection("call_detail_records")}
}

// skeleton is the $setOnInsert document for upserts that may arrive before
// the initiated event creates the record.
func skeleton(cdr *models.CallDetailRecord) bson.M {
	return bson.M{
		"call_id":      cdr.CallID,
		"campaign_id":  cdr.CampaignID,
		"contact_id":   cdr.ContactID,
		"phone_number": cdr.PhoneNumber,
		"created_at":   time.Now(),
	}
}

// CreateOnInitiated creates the CDR for a call. A redelivered initiated
// event finds the record already present and reports created=false; the
// caller treats that as a no-op, not an error.
func (r *CDRRepository) CreateOnInitiated(ctx context.Context, cdr *models.CallDetailRecord) (bool, error) {
	update := bson.M{
		"$setOnInsert": bson.M{
			"call_id":           cdr.CallID,
			"campaign_id":       cdr.CampaignID,
			"contact_id":        cdr.ContactID,
			"phone_number":      cdr.PhoneNumber,
			"created_at":        time.Now(),
			"dtmf_inputs":       []models.DTMFInput{},
			"actions_triggered": []models.TriggeredAction{},
		},
		"$set": bson.M{
			"status":     cdr.Status,
			"started_at": cdr.StartedAt,
			"updated_at": time.Now(),
		},
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"call_id": cdr.CallID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

// MarkAnswered records the answer time. Idempotent; it never moves an
// already-set answer time backwards.
func (r *CDRRepository) MarkAnswered(ctx context.Context, cdr *models.CallDetailRecord, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"call_id": cdr.CallID, "answered_at": bson.M{"$exists": false}},
		bson.M{
			"$set":         bson.M{"answered_at": at, "status": "answered", "updated_at": time.Now()},
			"$setOnInsert": skeleton(cdr),
		},
		options.Update().SetUpsert(true),
	)
	if isDuplicateKey(err) {
		// Upsert raced a concurrent delivery; the field is set either way.
		return nil
	}
	return err
}

// AppendDTMF appends a keypad press to the record. $addToSet deduplicates
// a redelivered event (same event_id payload) instead of double-recording.
func (r *CDRRepository) AppendDTMF(ctx context.Context, cdr *models.CallDetailRecord, input models.DTMFInput) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"call_id": cdr.CallID},
		bson.M{
			"$addToSet":    bson.M{"dtmf_inputs": input},
			"$set":         bson.M{"updated_at": time.Now()},
			"$setOnInsert": skeleton(cdr),
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// AppendAction appends a triggered action, deduplicated by event id.
func (r *CDRRepository) AppendAction(ctx context.Context, cdr *models.CallDetailRecord, action models.TriggeredAction) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"call_id": cdr.CallID},
		bson.M{
			"$addToSet":    bson.M{"actions_triggered": action},
			"$set":         bson.M{"updated_at": time.Now()},
			"$setOnInsert": skeleton(cdr),
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// FinalizeEnded writes the terminal outcome. The filter only matches a
// record with no prior outcome, so exactly one delivery of ended wins;
// the return value tells the aggregator whether to move outcome counters.
func (r *CDRRepository) FinalizeEnded(ctx context.Context, cdr *models.CallDetailRecord, outcome models.CallOutcome, endedAt time.Time, costCents int64) (bool, error) {
	set := bson.M{
		"outcome":    outcome,
		"ended_at":   endedAt,
		"status":     "ended",
		"cost_cents": costCents,
		"updated_at": time.Now(),
	}
	if existing, err := r.GetByCallID(ctx, cdr.CallID); err == nil && !existing.StartedAt.IsZero() {
		set["duration_seconds"] = int(endedAt.Sub(existing.StartedAt).Seconds())
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{
			"call_id": cdr.CallID,
			"outcome": bson.M{"$in": bson.A{nil, ""}},
		},
		bson.M{
			"$set":         set,
			"$setOnInsert": skeleton(cdr),
		},
		options.Update().SetUpsert(true),
	)
	if isDuplicateKey(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0 || res.UpsertedCount > 0, nil
}

// GetByCallID retrieves one CDR
func (r *CDRRepository) GetByCallID(ctx context.Context, callID string) (*models.CallDetailRecord, error) {
	var cdr models.CallDetailRecord
	err := r.coll.FindOne(ctx, bson.M{"call_id": callID}).Decode(&cdr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cdr, nil
}

// ListByCampaign returns a campaign's CDRs, newest first. Backs the report
// export endpoint; formatting is the consumer's problem.
func (r *CDRRepository) ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]*models.CallDetailRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
	cursor, err := r.coll.Find(ctx, bson.M{"campaign_id": campaignID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var cdrs []*models.CallDetailRecord
	if err := cursor.All(ctx, &cdrs); err != nil {
		return nil, err
	}
	return cdrs, nil
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return mongo.IsDuplicateKeyError(err)
}
