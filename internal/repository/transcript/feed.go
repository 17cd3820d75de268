package transcript

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis"
	"github.com/xpanvictor/hearken/pkg/io/stt"
)

// RedisFeed publishes each transcript on a channel and keeps the latest ones
// in a capped list for late subscribers.
type RedisFeed struct {
	rc        *redis.Client
	channel   string
	recentKey string
	recentLen int64
}

func NewRedisFeed(rc *redis.Client, channel, recentKey string, recentLen int64) *RedisFeed {
	return &RedisFeed{rc: rc, channel: channel, recentKey: recentKey, recentLen: recentLen}
}

func (f *RedisFeed) Publish(ctx context.Context, tr stt.Transcript) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}

	pipe := f.rc.TxPipeline()
	pipe.Publish(f.channel, payload)
	if f.recentLen > 0 {
		pipe.LPush(f.recentKey, payload)
		pipe.LTrim(f.recentKey, 0, f.recentLen-1)
	}
	if _, err := pipe.Exec(); err != nil {
		return fmt.Errorf("publishing transcript: %w", err)
	}
	return nil
}

// Recent returns the cached transcripts, newest first.
func (f *RedisFeed) Recent(ctx context.Context) ([]stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := f.rc.LRange(f.recentKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading recent transcripts: %w", err)
	}
	out := make([]stt.Transcript, 0, len(raw))
	for _, r := range raw {
		var tr stt.Transcript
		if err := json.Unmarshal([]byte(r), &tr); err != nil {
			continue
		}
		out = append(out, tr)
	}
	return out, nil
}
