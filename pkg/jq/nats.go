package jq

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

type JobQueue struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *zap.Logger
}

func New(url string, logger *zap.Logger) (*JobQueue, error) {
	jq := &JobQueue{
		logger: logger.Named("jq"),
	}

	conn, err := nats.Connect(
		url,
		nats.ReconnectHandler(jq.reconnectHandler),
		nats.DisconnectErrHandler(jq.disconnectHandler),
		nats.ClosedHandler(jq.closeHandler),
	)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	jq.conn = conn
	jq.js = js

	return jq, nil
}

func (jq *JobQueue) reconnectHandler(nc *nats.Conn) {
	jq.logger.Info("got reconnected", zap.String("url", nc.ConnectedUrl()))
}

func (jq *JobQueue) disconnectHandler(_ *nats.Conn, err error) {
	if err == nil {
		return
	}
	jq.logger.Error("got disconnected", zap.Error(err))
}

func (jq *JobQueue) closeHandler(nc *nats.Conn) {
	jq.logger.Warn("connection closed", zap.Error(nc.LastError()))
}

// Stream creates the stream or updates its subjects and limits.
func (jq *JobQueue) Stream(ctx context.Context, name, description string, topics []string, maxMsgs int64) error {
	_, err := jq.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        name,
		Description: description,
		Subjects:    topics,
		Retention:   jetstream.LimitsPolicy,
		MaxMsgs:     maxMsgs,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	return nil
}

// Produce publishes data on topic. Messages with the same id are deduplicated by the server.
func (jq *JobQueue) Produce(ctx context.Context, topic string, data []byte, id string) (*jetstream.PubAck, error) {
	var opts []jetstream.PublishOpt
	if id != "" {
		opts = append(opts, jetstream.WithMsgID(id))
	}
	ack, err := jq.js.Publish(ctx, topic, data, opts...)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", topic, err)
	}
	return ack, nil
}

func (jq *JobQueue) Close() {
	if jq.conn == nil {
		return
	}
	if err := jq.conn.Drain(); err != nil {
		jq.logger.Warn("failed to drain connection", zap.Error(err))
		jq.conn.Close()
	}
}
