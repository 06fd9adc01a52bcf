package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerationLog archives one finished generation request (system monitoring purpose)
// Collection: generation_logs
type GenerationLog struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID      string             `bson:"request_id" json:"request_id"`
	Prompt         string             `bson:"prompt" json:"prompt"`
	MediaType      string             `bson:"media_type" json:"media_type"`
	PredictionID   string             `bson:"prediction_id,omitempty" json:"prediction_id,omitempty"`
	Status         string             `bson:"status" json:"status"`
	ErrorKind      *string            `bson:"error_kind,omitempty" json:"error_kind,omitempty"`
	ErrorMessage   *string            `bson:"error_message,omitempty" json:"error_message,omitempty"`
	ContentType    string             `bson:"content_type,omitempty" json:"content_type,omitempty"`
	MediaSizeBytes int64              `bson:"media_size_bytes" json:"media_size_bytes"`
	DurationMs     int64              `bson:"duration_ms" json:"duration_ms"`
	RequestedAt    time.Time          `bson:"requested_at" json:"requested_at"`
	CompletedAt    time.Time          `bson:"completed_at" json:"completed_at"`
}
