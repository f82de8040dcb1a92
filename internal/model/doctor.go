package model

type Doctor struct {
	Base       `bson:",inline"`
	Name       string `db:"name" json:"name" bson:"name"`
	Email      string `db:"email" json:"email,omitempty" bson:"email,omitempty"`
	Specialty  string `db:"specialty" json:"specialty,omitempty" bson:"specialty,omitempty"`
	Department string `db:"department" json:"department,omitempty" bson:"department,omitempty"`
}
