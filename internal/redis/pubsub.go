package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// StockPubSub announces committed stock changes (allocation, cancellation,
// stock additions) for external consumers such as live admin dashboards.
type StockPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewStockPubSub(rdb *redis.Client) *StockPubSub {
	return &StockPubSub{
		rdb:     rdb,
		channel: ChannelStockChanged(),
	}
}

type stockChangedMsg struct {
	Type    string `json:"type"`
	EventID int64  `json:"event_id"`
	TsUnix  int64  `json:"ts_unix"`
}

func (p *StockPubSub) PublishStockChanged(ctx context.Context, eventID int64) error {
	msg := stockChangedMsg{
		Type:    "stock_changed",
		EventID: eventID,
		TsUnix:  time.Now().Unix(),
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe returns a subscription on the stock-changed channel. The caller
// owns the returned PubSub and must close it.
func (p *StockPubSub) Subscribe(ctx context.Context) *redis.PubSub {
	return p.rdb.Subscribe(ctx, p.channel)
}
