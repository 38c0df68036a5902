package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}

// SortDescending creates a descending sort option
func SortDescending(field string) bson.D {
	return bson.D{{Key: field, Value: -1}}
}

// SortAscending creates an ascending sort option
func SortAscending(field string) bson.D {
	return bson.D{{Key: field, Value: 1}}
}

// BuildUpdate builds a $set update document
func BuildUpdate(set bson.M) bson.M {
	return bson.M{"$set": set}
}
