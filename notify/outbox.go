package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authflow/model"
)

// DefaultStream is the stream RedisOutbox appends to when none is configured.
const DefaultStream = "af:outbox"

// RedisOutbox queues deliveries on a Redis stream. Each entry has the fields
// type, to, link and queued_ms.
type RedisOutbox struct {
	redis  redis.UniversalClient
	stream string
	maxLen int64
	now    func() time.Time
}

// NewRedisOutbox returns an outbox writing to stream. A positive maxLen caps
// the stream length approximately.
func NewRedisOutbox(client redis.UniversalClient, stream string, maxLen int64) *RedisOutbox {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisOutbox{redis: client, stream: stream, maxLen: maxLen, now: time.Now}
}

func (o *RedisOutbox) SendCode(ctx context.Context, typ model.CodeType, toEmail, link string) error {
	args := &redis.XAddArgs{
		Stream: o.stream,
		Values: map[string]any{
			"type":      string(typ),
			"to":        toEmail,
			"link":      link,
			"queued_ms": strconv.FormatInt(o.now().UnixMilli(), 10),
		},
	}
	if o.maxLen > 0 {
		args.MaxLen = o.maxLen
		args.Approx = true
	}
	if err := o.redis.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("notify: enqueue delivery: %w", err)
	}
	return nil
}

// Pending reads up to count queued deliveries starting after lastID ("0" for
// the beginning). It returns the deliveries and the ID of the last one read.
func (o *RedisOutbox) Pending(ctx context.Context, lastID string, count int64) ([]Delivery, string, error) {
	if lastID == "" {
		lastID = "0"
	}
	start, fetch := lastID, count+1
	if lastID == "0" {
		start, fetch = "-", count
	}
	msgs, err := o.redis.XRangeN(ctx, o.stream, start, "+", fetch).Result()
	if err != nil {
		return nil, lastID, fmt.Errorf("notify: read outbox: %w", err)
	}
	out := make([]Delivery, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == lastID || int64(len(out)) == count {
			continue
		}
		out = append(out, Delivery{
			Type: model.CodeType(fmt.Sprint(m.Values["type"])),
			To:   fmt.Sprint(m.Values["to"]),
			Link: fmt.Sprint(m.Values["link"]),
		})
		lastID = m.ID
	}
	return out, lastID, nil
}
