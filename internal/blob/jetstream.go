package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamStore keeps objects in a NATS JetStream object store bucket.
type JetStreamStore struct {
	conn  *nats.Conn
	store jetstream.ObjectStore
}

// NewJetStreamStore connects to natsURL and opens bucket, creating it when
// it does not exist yet.
func NewJetStreamStore(ctx context.Context, natsURL, bucket string) (*JetStreamStore, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("blob: connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("blob: create JetStream context: %w", err)
	}

	store, err := js.ObjectStore(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "Chat attachments",
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("blob: create bucket %s: %w", bucket, err)
		}
	} else if err != nil {
		conn.Close()
		return nil, fmt.Errorf("blob: open bucket %s: %w", bucket, err)
	}

	return &JetStreamStore{conn: conn, store: store}, nil
}

func (s *JetStreamStore) Put(ctx context.Context, name, contentType string, r io.Reader) (*Object, error) {
	contentType = defaultContentType(contentType)
	info, err := s.store.Put(ctx, jetstream.ObjectMeta{
		Name:    name,
		Headers: nats.Header{"Content-Type": []string{contentType}},
	}, r)
	if err != nil {
		return nil, fmt.Errorf("blob: put %s: %w", name, err)
	}
	return &Object{Name: info.Name, Size: int64(info.Size), ContentType: contentType}, nil
}

func (s *JetStreamStore) Open(ctx context.Context, name string) (io.ReadCloser, *Object, error) {
	result, err := s.store.Get(ctx, name)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("blob: get %s: %w", name, err)
	}

	info, err := result.Info()
	if err != nil {
		result.Close()
		return nil, nil, fmt.Errorf("blob: info %s: %w", name, err)
	}

	ct := ""
	if info.Headers != nil {
		ct = info.Headers.Get("Content-Type")
	}
	return result, &Object{Name: info.Name, Size: int64(info.Size), ContentType: defaultContentType(ct)}, nil
}

func (s *JetStreamStore) Close() error {
	s.conn.Close()
	return nil
}
