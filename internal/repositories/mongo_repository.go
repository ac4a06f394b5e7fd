package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"message-relay/internal/models"
)

const messagesCollection = "messages"

type mongoMessage struct {
	ID        primitive.ObjectID `bson:"_id"`
	Sender    string             `bson:"sender"`
	Receiver  string             `bson:"receiver"`
	Content   string             `bson:"content,omitempty"`
	MediaURL  string             `bson:"mediaUrl,omitempty"`
	Read      bool               `bson:"read"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (m mongoMessage) toModel() models.Message {
	return models.Message{
		ID:         m.ID.Hex(),
		SenderID:   m.Sender,
		ReceiverID: m.Receiver,
		Content:    m.Content,
		MediaURL:   m.MediaURL,
		Read:       m.Read,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

// MongoMessageRepo stores messages as documents.
type MongoMessageRepo struct {
	coll   *mongo.Collection
	logger *zap.SugaredLogger
	clock  *monotonicClock
}

// NewMongoMessageRepo constructs MongoMessageRepo on the messages collection of db.
func NewMongoMessageRepo(db *mongo.Database, logger *zap.SugaredLogger) *MongoMessageRepo {
	return &MongoMessageRepo{coll: db.Collection(messagesCollection), logger: logger, clock: newMonotonicClock()}
}

// EnsureIndexes creates the indexes used by BulkMarkRead and History.
func (r *MongoMessageRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}, {Key: "read", Value: 1}}},
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	return err
}

// Append inserts a message document.
func (r *MongoMessageRepo) Append(ctx context.Context, in models.NewMessage) (models.Message, error) {
	if err := validateNewMessage(in); err != nil {
		return models.Message{}, err
	}
	// BSON datetimes keep milliseconds only; truncate so the returned value matches what History reads back.
	doc := mongoMessage{
		ID:        primitive.NewObjectID(),
		Sender:    in.SenderID,
		Receiver:  in.ReceiverID,
		Content:   in.Content,
		MediaURL:  in.MediaURL,
		CreatedAt: r.clock.Now().Truncate(time.Millisecond),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return models.Message{}, err
	}
	r.logger.Debugf("Stored message %s from %s to %s", doc.ID.Hex(), doc.Sender, doc.Receiver)
	return doc.toModel(), nil
}

// BulkMarkRead runs a single UpdateMany over the unread messages of one direction.
func (r *MongoMessageRepo) BulkMarkRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"sender": senderID, "receiver": receiverID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// History returns the conversation ordered by creation time and id.
func (r *MongoMessageRepo) History(ctx context.Context, userA, userB string, page models.Page) ([]models.Message, error) {
	page = page.Normalize()
	filter := bson.M{"$or": bson.A{
		bson.M{"sender": userA, "receiver": userB},
		bson.M{"sender": userB, "receiver": userA},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	msgs := []models.Message{}
	for cur.Next(ctx) {
		var doc mongoMessage
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		msgs = append(msgs, doc.toModel())
	}
	return msgs, cur.Err()
}
