package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

type subjectRepository struct {
	patients *mongo.Collection
	doctors  *mongo.Collection
}

func NewSubjectRepository(db *mongo.Database) repository.SubjectRepository {
	return &subjectRepository{
		patients: db.Collection(model.PatientNamespace.SubjectCollection),
		doctors:  db.Collection(model.DoctorNamespace.SubjectCollection),
	}
}

func (r *subjectRepository) GetPatient(ctx context.Context, id string) (*model.Patient, error) {
	var patient model.Patient
	err := r.patients.FindOne(ctx, bson.M{"_id": id}).Decode(&patient)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *subjectRepository) GetDoctor(ctx context.Context, id string) (*model.Doctor, error) {
	var doctor model.Doctor
	err := r.doctors.FindOne(ctx, bson.M{"_id": id}).Decode(&doctor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}
