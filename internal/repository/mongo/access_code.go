package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

type accessCodeRepository struct {
	db *mongo.Database
}

func NewAccessCodeRepository(db *mongo.Database) repository.AccessCodeRepository {
	return &accessCodeRepository{db: db}
}

func (r *accessCodeRepository) find(ctx context.Context, ns model.Namespace, filter bson.M) ([]*model.AccessCode, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.db.Collection(ns.CodeCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var codes []*model.AccessCode
	if err := cursor.All(ctx, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *accessCodeRepository) FindByCode(ctx context.Context, ns model.Namespace, code string) ([]*model.AccessCode, error) {
	codes, err := r.find(ctx, ns, bson.M{"code": code})
	if err != nil {
		return nil, fmt.Errorf("failed to find access code: %w", err)
	}
	return codes, nil
}

func (r *accessCodeRepository) FindBySubject(ctx context.Context, ns model.Namespace, subjectID string) ([]*model.AccessCode, error) {
	codes, err := r.find(ctx, ns, bson.M{"subjectId": subjectID})
	if err != nil {
		return nil, fmt.Errorf("failed to find subject access codes: %w", err)
	}
	return codes, nil
}

func (r *accessCodeRepository) Create(ctx context.Context, ns model.Namespace, code *model.AccessCode) error {
	doc := model.AccessCode{
		ID:          bson.NewObjectID().Hex(),
		Code:        code.Code,
		SubjectID:   code.SubjectID,
		CreatedAt:   time.Now().UTC(),
		IsPermanent: true,
	}

	if _, err := r.db.Collection(ns.CodeCollection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateCode
		}
		return fmt.Errorf("failed to insert access code: %w", err)
	}

	*code = doc
	return nil
}
