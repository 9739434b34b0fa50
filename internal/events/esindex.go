package events

import (
	"bytes"
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"
)

// AuditIndexer mirrors audit events into an Elasticsearch index so they
// can be queried alongside the rest of the security telemetry.
type AuditIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewAuditIndexer(url, username, password, index string) (*AuditIndexer, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &AuditIndexer{client: client, index: index}, nil
}

func (ix *AuditIndexer) Index(ctx context.Context, id string, doc []byte) error {
	res, err := ix.client.Index(
		ix.index,
		bytes.NewReader(doc),
		ix.client.Index.WithDocumentID(id),
		ix.client.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch index: %s", res.Status())
	}
	return nil
}
