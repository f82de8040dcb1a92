package model

import (
	"time"
)

type Patient struct {
	Base        `bson:",inline"`
	Name        string     `db:"name" json:"name" bson:"name"`
	Email       string     `db:"email" json:"email,omitempty" bson:"email,omitempty"`
	Phone       string     `db:"phone" json:"phone,omitempty" bson:"phone,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty" bson:"dateOfBirth,omitempty"`
}
