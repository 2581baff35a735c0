package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields.
// These keys are used to store values in context.Context that will be
// automatically extracted and added to log entries.
const (
	// ContextKeyMessageID identifies the message being dispatched.
	ContextKeyMessageID contextKey = "message_id"

	// ContextKeySource identifies the sender of the message.
	ContextKeySource contextKey = "source"

	// ContextKeyRecipient identifies the conversation (shard key).
	ContextKeyRecipient contextKey = "recipient"

	// ContextKeyCommand identifies the command being executed.
	ContextKeyCommand contextKey = "command"

	// ContextKeyWorkerID identifies the worker task handling the message.
	ContextKeyWorkerID contextKey = "worker_id"

	// ContextKeyShardID identifies the shard queue the message was routed to.
	ContextKeyShardID contextKey = "shard_id"

	// ContextKeyRequestID identifies an individual gateway HTTP request.
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyEnvironment identifies the deployment environment.
	ContextKeyEnvironment contextKey = "environment"
)

// allContextKeys lists all context keys that should be extracted for logging.
// This is used by the handler to iterate over all possible context values.
var allContextKeys = []contextKey{
	ContextKeyMessageID,
	ContextKeySource,
	ContextKeyRecipient,
	ContextKeyCommand,
	ContextKeyWorkerID,
	ContextKeyShardID,
	ContextKeyRequestID,
	ContextKeyEnvironment,
}

// WithMessageID returns a new context with the message ID set.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, ContextKeyMessageID, messageID)
}

// WithSource returns a new context with the message source set.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, ContextKeySource, source)
}

// WithRecipient returns a new context with the conversation key set.
func WithRecipient(ctx context.Context, recipient string) context.Context {
	return context.WithValue(ctx, ContextKeyRecipient, recipient)
}

// WithCommand returns a new context with the command name set.
func WithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, ContextKeyCommand, command)
}

// WithWorkerID returns a new context with the worker ID set.
func WithWorkerID(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, ContextKeyWorkerID, workerID)
}

// WithShardID returns a new context with the shard ID set.
func WithShardID(ctx context.Context, shardID string) context.Context {
	return context.WithValue(ctx, ContextKeyShardID, shardID)
}

// WithRequestID returns a new context with the request ID set.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithEnvironment returns a new context with the environment set.
func WithEnvironment(ctx context.Context, environment string) context.Context {
	return context.WithValue(ctx, ContextKeyEnvironment, environment)
}
