package document

import (
	"github.com/gogotex/mongomodel/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
)

// Document is a named text owned by one user.
type Document struct {
	model.Base       `bson:",inline"`
	model.Timestamps `bson:",inline"`

	OwnerID string   `json:"owner_id" bson:"owner_id"`
	Name    string   `json:"name" bson:"name"`
	Content string   `json:"content,omitempty" bson:"content,omitempty"`
	Tags    []string `json:"tags,omitempty" bson:"tags,omitempty"`
}

// Indexes: names are unique per owner, and listings go newest first.
func (*Document) Indexes() []model.Index {
	return []model.Index{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "name", Value: 1}}, Unique: true},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: model.FieldUpdatedAt, Value: -1}}},
	}
}
