package tokencache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultNATSBucket is the key-value bucket used when none is configured.
const DefaultNATSBucket = "jushuitan_tokens"

// NATS stores tokens in a JetStream key-value bucket. Keys are base64url
// encoded since KV keys cannot contain ':'. Expiry is tracked per record.
type NATS struct {
	conn    *nats.Conn
	kv      jetstream.KeyValue
	nowFunc func() time.Time
}

// NewNATS connects to NATS and creates the bucket if needed.
func NewNATS(ctx context.Context, cfg NATSConfig) (*NATS, error) {
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultNATSBucket
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("jushuitan-tokencache"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Jushuitan access tokens",
		History:     1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening kv bucket %s: %w", bucket, err)
	}

	return &NATS{conn: conn, kv: kv, nowFunc: time.Now}, nil
}

// Get returns the value stored under key. Expired entries are absent.
func (n *NATS) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := n.kv.Get(ctx, natsKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("nats kv get %s: %w", key, err)
	}

	var r record
	if err := json.Unmarshal(entry.Value(), &r); err != nil {
		return "", false, fmt.Errorf("decoding nats kv record %s: %w", key, err)
	}
	if r.expired(n.nowFunc()) {
		return "", false, nil
	}
	return r.Value, true, nil
}

// Set stores value under key. A ttl <= 0 means no expiry.
func (n *NATS) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	data, err := json.Marshal(newRecord(value, ttl, n.nowFunc()))
	if err != nil {
		return fmt.Errorf("encoding nats kv record: %w", err)
	}
	if _, err := n.kv.Put(ctx, natsKey(key), data); err != nil {
		return fmt.Errorf("nats kv put %s: %w", key, err)
	}
	return nil
}

// Close drains the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

func natsKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}
