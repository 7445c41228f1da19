// Package model binds Go record types to MongoDB collections.
//
// A record type embeds Base (string identifier stored in _id) and optionally
// Timestamps (created_at / updated_at). Capabilities are declared by
// implementing small interfaces on the record pointer:
//
//	Namer        ModelName() string       overrides the logical type name
//	Timestamped  GetTimestamps() *Timestamps
//	Indexed      Indexes() []Index
//
// New binds a record type to a lazily connected Source; NewWithCollection
// binds it to an explicit Collection (any store that speaks the driver's
// collection API). Every failure returned by a Model operation is a *Error
// whose Kind is one of NotFound, DuplicateKey, ConnectionFailure,
// InvalidArgument or StoreError:
//
//	users := model.New[User](pool)
//	u, err := users.FindOne(ctx, bson.M{"username": "ada"})
//	if errors.Is(err, model.ErrNotFound) {
//		...
//	}
package model
