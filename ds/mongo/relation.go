package mongo

import "go.mongodb.org/mongo-driver/bson"

// Relation describes how a named association is joined with $lookup.
type Relation struct {
	From         string // collection holding the related documents
	LocalField   string // field of this collection referencing them
	ForeignField string // field of From compared with LocalField, "_id" when empty
	As           string // output field, the relation name when empty
	Single       bool   // unwind to one embedded document instead of an array
}

func (r Relation) stages(name string) []bson.D {
	as := r.As
	if as == "" {
		as = name
	}

	foreign := r.ForeignField
	if foreign == "" {
		foreign = ID
	}

	stages := []bson.D{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: r.From},
			{Key: "localField", Value: r.LocalField},
			{Key: "foreignField", Value: foreign},
			{Key: "as", Value: as},
		}}},
	}

	if r.Single {
		stages = append(stages, bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$" + as},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}})
	}

	return stages
}
