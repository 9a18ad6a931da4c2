package mongo

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/logistics-id/crud/common"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/event"
	"go.uber.org/zap"
)

// BuildFilter turns lookup criteria into a MongoDB filter document.
//
// Example:
//
//	BuildFilter([]common.Filter{{"id": "65f0..."}, {"status": []string{"a", "b"}}})
//	=>
//	{
//	  "$or": [
//	    {"_id": ObjectId("65f0...")},
//	    {"status": {"$in": ["a", "b"]}}
//	  ]
//	}
func BuildFilter(criteria []common.Filter) bson.M {
	switch len(criteria) {
	case 0:
		return bson.M{}
	case 1:
		return normalizeFilter(criteria[0])
	}

	or := make(bson.A, 0, len(criteria))
	for _, f := range criteria {
		or = append(or, normalizeFilter(f))
	}

	return bson.M{"$or": or}
}

func normalizeFilter(f common.Filter) bson.M {
	out := make(bson.M, len(f))

	for k, v := range f {
		if k == "id" {
			k = ID
		}
		if k == ID {
			v = objectIDValue(v)
		}

		switch v.(type) {
		case bson.D, bson.M, bson.A:
		default:
			if common.IsListValue(v) {
				v = bson.M{"$in": v}
			}
		}

		out[k] = v
	}

	return out
}

// objectIDValue converts hex strings to ObjectIDs, leaving anything else
// untouched so that non ObjectID keys still compare as given.
func objectIDValue(v any) any {
	switch id := v.(type) {
	case string:
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			return oid
		}
	case []string:
		ids := make([]any, 0, len(id))
		for _, s := range id {
			ids = append(ids, objectIDValue(s))
		}
		return ids
	}

	return v
}

// RequestSort converts a list of sort keys into a MongoDB sort document.
//
// Prefixing a field with "-" sorts descending. Use "__" to represent nested fields.
// The special case "id" will be converted to "_id".
//
// Example:
//
//	RequestSort([]string{"-created_at", "user__name"})
//	=>
//	bson.D{
//	  {"created_at", -1},
//	  {"user.name", 1},
//	}
func RequestSort(sort []string) bson.D {
	result := bson.D{}

	for _, field := range sort {
		order := 1
		if strings.HasPrefix(field, "-") {
			order = -1
			field = strings.TrimPrefix(field, "-")
		}

		if field == "id" {
			field = ID
		}

		field = strings.ReplaceAll(field, "__", ".")

		result = append(result, bson.E{Key: field, Value: order})
	}

	return result
}

func commandMap(c bson.Raw) map[string]any {
	var res map[string]any

	if err := bson.Unmarshal(c, &res); err != nil {
		res = map[string]any{"raw": string(c)}
	}

	return res
}

var commandCache sync.Map

func skipCommand(name string) bool {
	return name == "ping" || name == "endSessions" || name == "hello" || name == "isMaster"
}

func monitoring() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started: func(ctx context.Context, evt *event.CommandStartedEvent) {
			if !skipCommand(evt.CommandName) {
				commandCache.Store(evt.RequestID, evt.Command)
			}
		},
		Succeeded: func(ctx context.Context, evt *event.CommandSucceededEvent) {
			cmd, ok := commandCache.LoadAndDelete(evt.RequestID)
			if !ok {
				return
			}

			logger.Info("MGO/CMD SUCCEEDED",
				zap.String("request_id", common.GetContextRequestID(ctx)),
				zap.String("event", evt.CommandName),
				zap.Duration("duration", evt.Duration),
				zap.Any("command", commandMap(cmd.(bson.Raw))),
			)
		},
		Failed: func(ctx context.Context, evt *event.CommandFailedEvent) {
			cmd, ok := commandCache.LoadAndDelete(evt.RequestID)
			if !ok {
				return
			}

			logger.Error("MGO/CMD FAILED",
				zap.String("request_id", common.GetContextRequestID(ctx)),
				zap.String("event", evt.CommandName),
				zap.Duration("duration", evt.Duration),
				zap.Any("command", commandMap(cmd.(bson.Raw))),
				zap.Error(errors.New(evt.Failure)),
			)
		},
	}
}
