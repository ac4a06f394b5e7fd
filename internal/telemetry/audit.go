package telemetry

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Audit levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

const auditSchemaVersion = 2

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditRecord is the message published for every audited relay decision.
type AuditRecord struct {
	SchemaVersion int       `json:"schema_version"`
	Kind          string    `json:"kind"`
	At            time.Time `json:"at"`
	Service       string    `json:"service"`
	Environment   string    `json:"environment"`
	RequestID     string    `json:"request_id"`
	UserID        *string   `json:"user_id,omitempty"`
	Level         string    `json:"level"`
	Message       string    `json:"message"`
}

// AuditEmitter publishes audit records to "<routing key>.<level>".
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	logger      *zap.SugaredLogger
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, logger *zap.SugaredLogger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		logger:      logger,
	}
}

// normalizeLevel maps free-form levels onto LevelInfo, LevelWarn and LevelError.
func normalizeLevel(level string) string {
	switch strings.ToUpper(level) {
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Emit logs the record and publishes it. Publish errors are logged and dropped.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *string) {
	if e == nil || e.publisher == nil {
		return
	}
	level = normalizeLevel(level)

	fields := []interface{}{"request_id", requestID, "user_id", userID}
	switch level {
	case LevelError:
		e.logger.Errorw("audit: "+text, fields...)
	case LevelWarn:
		e.logger.Warnw("audit: "+text, fields...)
	default:
		e.logger.Infow("audit: "+text, fields...)
	}

	record := AuditRecord{
		SchemaVersion: auditSchemaVersion,
		Kind:          "relay_audit",
		At:            time.Now().UTC(),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Level:         level,
		Message:       text,
	}
	if err := e.publisher.Publish(ctx, e.routingKey+"."+strings.ToLower(level), record); err != nil {
		e.logger.Warnw("audit publish failed", "request_id", requestID, "error", err)
	}
}
