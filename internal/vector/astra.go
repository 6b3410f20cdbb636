package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/smoradi/memochat/config"
	"github.com/smoradi/memochat/models"
)

// Client talks to an Astra DB Data API endpoint. It is safe for concurrent
// use; construct one and share it across turns.
type Client struct {
	endpoint   string
	token      string
	keyspace   string
	collection string
	dimension  int
	metric     string
	httpClient *http.Client
}

// NewClient builds a Data API client from config. The declared dimension is a
// deployment-time constant: a pre-existing collection with a different
// dimension needs a new collection, not a config change.
func NewClient(cfg config.VectorConfig) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Token == "" {
		return nil, fmt.Errorf("vector store not configured (vector.endpoint/token)")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		token:      cfg.Token,
		keyspace:   cfg.Keyspace,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		metric:     cfg.Metric,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Dimension returns the declared index dimension of the collection.
func (c *Client) Dimension() int { return c.dimension }

type apiResponse struct {
	Status struct {
		Collections   []string `json:"collections"`
		InsertedIDs   []any    `json:"insertedIds"`
		DeletedCount  int      `json:"deletedCount"`
		ModifiedCount int      `json:"modifiedCount"`
	} `json:"status"`
	Data struct {
		Documents []models.MemoryDocument `json:"documents"`
	} `json:"data"`
	Errors []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	} `json:"errors"`
}

// EnsureCollection checks for the collection by name and creates it with the
// declared dimension and metric when absent. Existing collections are left
// untouched regardless of their dimension.
func (c *Client) EnsureCollection(ctx context.Context) error {
	resp, err := c.post(ctx, c.keyspace, map[string]interface{}{
		"findCollections": map[string]interface{}{},
	})
	if err != nil {
		return fmt.Errorf("find collections: %w", err)
	}
	for _, name := range resp.Status.Collections {
		if name == c.collection {
			return nil
		}
	}

	_, err = c.post(ctx, c.keyspace, map[string]interface{}{
		"createCollection": map[string]interface{}{
			"name": c.collection,
			"options": map[string]interface{}{
				"vector": map[string]interface{}{
					"dimension": c.dimension,
					"metric":    c.metric,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", c.collection, err)
	}
	return nil
}

// Insert writes one memory document. The document body carries the storage
// vector in its embedding field; similarity is indexed as $vector and must
// already have the declared dimension.
func (c *Client) Insert(ctx context.Context, doc models.MemoryDocument, similarity []float32) error {
	payload := struct {
		models.MemoryDocument
		Similarity []float32 `json:"$vector"`
	}{doc, similarity}

	_, err := c.post(ctx, c.keyspace+"/"+c.collection, map[string]interface{}{
		"insertOne": map[string]interface{}{"document": payload},
	})
	if err != nil {
		return fmt.Errorf("insert memory document: %w", err)
	}
	return nil
}

// SimilarTo returns the top-K nearest documents to the given similarity
// vector by the collection's metric, across the whole collection.
func (c *Client) SimilarTo(ctx context.Context, similarity []float32, limit int) ([]models.MemoryDocument, error) {
	resp, err := c.post(ctx, c.keyspace+"/"+c.collection, map[string]interface{}{
		"find": map[string]interface{}{
			"filter":  map[string]interface{}{},
			"sort":    map[string]interface{}{"$vector": similarity},
			"options": map[string]interface{}{"limit": limit},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("similarity find: %w", err)
	}
	return resp.Data.Documents, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*apiResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.endpoint + "/api/json/v1/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("data api error: %s (%s)", out.Errors[0].Message, out.Errors[0].ErrorCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("data api returned status %d", resp.StatusCode)
	}
	return &out, nil
}
