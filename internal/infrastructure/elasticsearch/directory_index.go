// Package elasticsearch keeps a searchable copy of public user profiles.
package elasticsearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/staff-directory/internal/domain/entity"
	"github.com/oksasatya/staff-directory/internal/domain/repository"
)

const (
	requestTimeout = 3 * time.Second
	maxResults     = 1000
)

// NewClient creates an Elasticsearch client with optional basic auth.
func NewClient(addrs []string, username, password string) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addrs,
		Username:  username,
		Password:  password,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 5 * time.Second,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		},
	})
}

// profileDoc is the indexed projection. It never carries credentials.
type profileDoc struct {
	ID                     string `json:"id"`
	Email                  string `json:"email"`
	FirstName              string `json:"firstName"`
	LastName               string `json:"lastName"`
	Position               string `json:"position"`
	PositionSeniorityIndex *int   `json:"positionSeniorityIndex"`
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":                     {"type": "keyword"},
      "email":                  {"type": "keyword"},
      "firstName":              {"type": "keyword"},
      "lastName":               {"type": "keyword"},
      "position":               {"type": "text"},
      "positionSeniorityIndex": {"type": "integer"}
    }
  }
}`

type DirectoryIndex struct {
	es     *elasticsearch.Client
	index  string
	logger *logrus.Logger
}

func NewDirectoryIndex(es *elasticsearch.Client, index string, logger *logrus.Logger) *DirectoryIndex {
	return &DirectoryIndex{es: es, index: index, logger: logger}
}

// EnsureIndex creates the index with keyword mappings when it is missing.
func (d *DirectoryIndex) EnsureIndex(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := esapi.IndicesExistsRequest{Index: []string{d.index}}.Do(c, d.es)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{Index: d.index, Body: bytes.NewReader([]byte(indexMapping))}.Do(c, d.es)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("create index: %s", res.Status())
	}
	return nil
}

// IndexUser upserts the public profile of u.
func (d *DirectoryIndex) IndexUser(ctx context.Context, u *entity.User) error {
	b, err := json.Marshal(profileDoc{
		ID:                     u.ID,
		Email:                  u.Email,
		FirstName:              u.FirstName,
		LastName:               u.LastName,
		Position:               u.Position,
		PositionSeniorityIndex: u.PositionSeniorityIndex,
	})
	if err != nil {
		return err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req := esapi.IndexRequest{Index: d.index, DocumentID: u.ID, Body: bytes.NewReader(b), Refresh: "false"}
	res, err := req.Do(c, d.es)
	if err != nil {
		return fmt.Errorf("index user: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		if d.logger != nil {
			d.logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
		}
		return fmt.Errorf("index user: %s", res.Status())
	}
	return nil
}

// Search evaluates the directory predicate in Elasticsearch. The filter is
// rewritten into a whole-term Lucene regexp (see luceneRegexp) and every hit
// is checked against the query again, so results never exceed what the
// in-process matcher accepts.
func (d *DirectoryIndex) Search(ctx context.Context, q repository.DirectoryQuery) ([]*entity.User, error) {
	body, err := buildQuery(q)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := d.es.Search(
		d.es.Search.WithContext(c),
		d.es.Search.WithIndex(d.index),
		d.es.Search.WithBody(bytes.NewReader(b)),
	)
	if err != nil {
		return nil, fmt.Errorf("search directory: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("%w: rejected by the search index", repository.ErrInvalidFilter)
	}
	if res.IsError() {
		return nil, fmt.Errorf("search directory: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source profileDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]*entity.User, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		doc := h.Source
		u := &entity.User{
			ID:                     doc.ID,
			Email:                  doc.Email,
			FirstName:              doc.FirstName,
			LastName:               doc.LastName,
			Position:               doc.Position,
			PositionSeniorityIndex: doc.PositionSeniorityIndex,
		}
		if q.Matches(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func buildQuery(q repository.DirectoryQuery) (map[string]any, error) {
	boolQuery := map[string]any{
		"filter": []any{
			map[string]any{"range": map[string]any{
				"positionSeniorityIndex": map[string]any{"lte": q.MaxSeniorityIndex},
			}},
		},
		"must_not": []any{
			map[string]any{"ids": map[string]any{"values": []string{q.ExcludeUserID}}},
		},
	}
	if q.Filter != "" {
		pattern, err := luceneRegexp(q.Filter)
		if err != nil {
			return nil, err
		}
		boolQuery["should"] = []any{
			map[string]any{"regexp": map[string]any{"firstName": map[string]any{"value": pattern}}},
			map[string]any{"regexp": map[string]any{"lastName": map[string]any{"value": pattern}}},
		}
		boolQuery["minimum_should_match"] = 1
	}
	return map[string]any{
		"size": maxResults,
		"sort": []any{
			map[string]any{"positionSeniorityIndex": "asc"},
			map[string]any{"lastName": "asc"},
			map[string]any{"firstName": "asc"},
		},
		"query": map[string]any{"bool": boolQuery},
	}, nil
}

var _ repository.DirectorySearcher = (*DirectoryIndex)(nil)
