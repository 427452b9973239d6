package mgo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zhihao1021/tjoy/data/database/mgo/mongoutil"
	"github.com/zhihao1021/tjoy/module/chat/model"
	"github.com/zhihao1021/tjoy/tools/errs"
	"github.com/zhihao1021/tjoy/tools/ids"
)

// Store keeps messages and conversation membership in MongoDB.
type Store struct {
	cli          *mongoutil.Client
	messages     *mongo.Collection
	members      *mongo.Collection
	transactions bool
}

func NewStore(cli *mongoutil.Client, transactions bool) *Store {
	db := cli.GetDB()
	return &Store{
		cli:          cli,
		messages:     db.Collection(model.MessageTableName),
		members:      db.Collection(model.ConversationUserTableName),
		transactions: transactions,
	}
}

// Open connects with cfg and returns a ready store.
func Open(ctx context.Context, cfg *mongoutil.Config) (*Store, error) {
	cli, err := mongoutil.NewMongoDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := NewStore(cli, cfg.Transactions)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = cli.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.members.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	})
	if err != nil {
		return errs.WrapMsg(err, "create conversation_users indexes")
	}
	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "_id", Value: -1}},
	})
	return errs.WrapMsg(err, "create messages index")
}

// SaveMessage inserts m, inside a session transaction when enabled.
func (s *Store) SaveMessage(ctx context.Context, m model.Message) (model.Message, error) {
	if !s.transactions {
		if _, err := s.messages.InsertOne(ctx, m); err != nil {
			return model.Message{}, errs.WrapMsg(err, "insert message", "id", m.ID)
		}
		return m, nil
	}

	sess, err := s.cli.Mongo().StartSession()
	if err != nil {
		return model.Message{}, errs.WrapMsg(err, "start session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return s.messages.InsertOne(sc, m)
	})
	if err != nil {
		return model.Message{}, errs.WrapMsg(err, "insert message in transaction", "id", m.ID)
	}
	return m, nil
}

func (s *Store) MembersOfConversation(ctx context.Context, convID ids.ID) ([]ids.ID, error) {
	cur, err := s.members.Find(ctx, bson.M{"conversation_id": convID},
		options.Find().
			SetProjection(bson.M{"user_id": 1, "_id": 0}).
			SetSort(bson.D{{Key: "user_id", Value: 1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "find members", "conv", convID)
	}
	var rows []model.ConversationUser
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.WrapMsg(err, "decode members", "conv", convID)
	}
	out := make([]ids.ID, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.UserID)
	}
	return out, nil
}

// AddMember upserts a membership row.
func (s *Store) AddMember(ctx context.Context, convID, userID ids.ID) error {
	filter := bson.M{"conversation_id": convID, "user_id": userID}
	_, err := s.members.UpdateOne(ctx, filter,
		bson.M{"$setOnInsert": filter}, options.Update().SetUpsert(true))
	return errs.WrapMsg(err, "add member", "conv", convID, "user", userID)
}

func (s *Store) Close(ctx context.Context) error { return s.cli.Close(ctx) }
