package users

import (
	"github.com/gogotex/mongomodel/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
)

// User is an application account. Sub is set for accounts created from an
// identity provider's claims.
type User struct {
	model.Base       `bson:",inline"`
	model.Timestamps `bson:",inline"`

	Username string   `bson:"username" json:"username"`
	Email    string   `bson:"email" json:"email"`
	Name     string   `bson:"name,omitempty" json:"name,omitempty"`
	Sub      string   `bson:"sub,omitempty" json:"sub,omitempty"`
	Roles    []string `bson:"roles,omitempty" json:"roles,omitempty"`
}

func (*User) Indexes() []model.Index {
	return []model.Index{
		{Keys: bson.D{{Key: "username", Value: 1}}, Unique: true},
		{Keys: bson.D{{Key: "email", Value: 1}}, Unique: true},
		{Keys: bson.D{{Key: "sub", Value: 1}}, Unique: true, Sparse: true},
		{Keys: bson.D{{Key: model.FieldCreatedAt, Value: -1}}},
	}
}
