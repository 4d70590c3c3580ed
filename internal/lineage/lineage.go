// Package lineage resolves declared downstream dependents of data resources
// from an ArangoDB lineage graph. It backs the engine's categorical signal:
// a bug filed by a component that consumes the incident's table is a much
// stronger correlation candidate than one from an unrelated component.
package lineage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"

	"databug.app/engine/internal/engine"
)

const (
	graphName           = "lineage"
	resourceCollection  = "resources"
	componentCollection = "components"
	feedsCollection     = "feeds"

	// transitiveDepth bounds the indirect traversal; lineage chains deeper
	// than this are too weak to count as declared adjacency.
	transitiveDepth = 4
)

// Resource is a dataset, table or topic in the lineage graph.
type Resource struct {
	Name string
	Kind string // "table", "topic", "view"
}

// Component is a consumer registered against resources.
type Component struct {
	Name string
	Team string
}

// Edge declares that From (a resource) feeds To (a resource or component).
type Edge struct {
	From string
	To   string
}

type Config struct {
	URL      string
	Username string
	Password string
	Database string
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("arangodb URL is required")
	}
	if c.Username == "" {
		return fmt.Errorf("arangodb username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("arangodb database name is required")
	}
	return nil
}

// Unavailable is the adjacency lookup for deployments without a lineage
// graph. Every lookup fails, so the categorical signal takes its
// conservative default.
type Unavailable struct{}

func (Unavailable) Downstream(_ context.Context, _ string) (engine.AdjacencySet, error) {
	return engine.AdjacencySet{}, fmt.Errorf("lineage graph not configured")
}

// Client is the lineage graph client. It satisfies engine.AdjacencyLookup.
type Client interface {
	engine.AdjacencyLookup

	EnsureDatabase(ctx context.Context) error
	EnsureCollections(ctx context.Context) error
	EnsureGraph(ctx context.Context) error

	IngestResources(ctx context.Context, resources []Resource) error
	IngestComponents(ctx context.Context, components []Component) error
	IngestEdges(ctx context.Context, edges []Edge) error

	Close() error
}

type client struct {
	conn         connection.Connection
	arangoClient arangodb.Client
	db           arangodb.Database
	cfg          Config
}

func New(ctx context.Context, cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("lineage config: %w", err)
	}

	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
	conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))

	auth := connection.NewBasicAuth(cfg.Username, cfg.Password)
	if err := conn.SetAuthentication(auth); err != nil {
		return nil, fmt.Errorf("lineage auth: %w", err)
	}

	return &client{
		conn:         conn,
		arangoClient: arangodb.NewClient(conn),
		cfg:          cfg,
	}, nil
}

func (c *client) Close() error {
	return nil
}

func (c *client) EnsureDatabase(ctx context.Context) error {
	start := time.Now()

	exists, err := c.arangoClient.DatabaseExists(ctx, c.cfg.Database)
	if err != nil {
		return fmt.Errorf("check database exists: %w", err)
	}

	if !exists {
		_, err = c.arangoClient.CreateDatabase(ctx, c.cfg.Database, nil)
		if err != nil {
			return fmt.Errorf("create database: %w", err)
		}
		slog.InfoContext(ctx, "lineage database created",
			"database", c.cfg.Database,
			"duration_ms", time.Since(start).Milliseconds())
	}

	db, err := c.arangoClient.GetDatabase(ctx, c.cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("get database: %w", err)
	}
	c.db = db

	return nil
}

func (c *client) EnsureCollections(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized, call EnsureDatabase first")
	}

	if err := c.ensureCollection(ctx, resourceCollection, false); err != nil {
		return err
	}
	if err := c.ensureCollection(ctx, componentCollection, false); err != nil {
		return err
	}
	return c.ensureCollection(ctx, feedsCollection, true)
}

func (c *client) ensureCollection(ctx context.Context, name string, isEdge bool) error {
	exists, err := c.db.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s exists: %w", name, err)
	}

	if !exists {
		props := &arangodb.CreateCollectionPropertiesV2{}
		colType := arangodb.CollectionTypeDocument
		if isEdge {
			colType = arangodb.CollectionTypeEdge
		}
		props.Type = &colType

		_, err = c.db.CreateCollectionV2(ctx, name, props)
		if err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		slog.InfoContext(ctx, "lineage collection created",
			"collection", name,
			"is_edge", isEdge)
	}

	return nil
}

func (c *client) EnsureGraph(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized, call EnsureDatabase first")
	}

	exists, err := c.db.GraphExists(ctx, graphName)
	if err != nil {
		return fmt.Errorf("check graph exists: %w", err)
	}
	if exists {
		return nil
	}

	graphDef := &arangodb.GraphDefinition{
		Name: graphName,
		EdgeDefinitions: []arangodb.EdgeDefinition{
			{
				Collection: feedsCollection,
				From:       []string{resourceCollection},
				To:         []string{resourceCollection, componentCollection},
			},
		},
	}

	_, err = c.db.CreateGraph(ctx, graphName, graphDef, nil)
	if err != nil {
		return fmt.Errorf("create graph: %w", err)
	}

	slog.InfoContext(ctx, "lineage graph created", "graph", graphName)
	return nil
}

func (c *client) IngestResources(ctx context.Context, resources []Resource) error {
	docs := make([]map[string]any, len(resources))
	for i, r := range resources {
		docs[i] = map[string]any{
			"_key": makeKey(r.Name),
			"name": strings.ToLower(r.Name),
			"kind": r.Kind,
		}
	}
	return c.ingest(ctx, resourceCollection, docs)
}

func (c *client) IngestComponents(ctx context.Context, components []Component) error {
	docs := make([]map[string]any, len(components))
	for i, comp := range components {
		docs[i] = map[string]any{
			"_key": makeKey(comp.Name),
			"name": strings.ToLower(comp.Name),
			"team": comp.Team,
		}
	}
	return c.ingest(ctx, componentCollection, docs)
}

func (c *client) IngestEdges(ctx context.Context, edges []Edge) error {
	docs := make([]map[string]any, len(edges))
	for i, e := range edges {
		docs[i] = map[string]any{
			"_key":  makeEdgeKey(e.From, e.To),
			"_from": fmt.Sprintf("%s/%s", resourceCollection, makeKey(e.From)),
			"_to":   fmt.Sprintf("%s/%s", targetCollection(e.To), makeKey(e.To)),
		}
	}
	return c.ingest(ctx, feedsCollection, docs)
}

// ingest inserts documents, silently ignoring duplicate keys so lineage
// declarations can be re-applied idempotently.
func (c *client) ingest(ctx context.Context, collection string, docs []map[string]any) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if len(docs) == 0 {
		return nil
	}

	start := time.Now()
	col, err := c.db.GetCollection(ctx, collection, nil)
	if err != nil {
		return fmt.Errorf("get collection %s: %w", collection, err)
	}

	reader, err := col.CreateDocuments(ctx, docs)
	if err != nil {
		return fmt.Errorf("create documents: %w", err)
	}
	for {
		if _, readErr := reader.Read(); readErr != nil {
			break
		}
	}

	slog.DebugContext(ctx, "lineage documents ingested",
		"collection", collection,
		"count", len(docs),
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

// Downstream returns the components fed by a resource. Depth-1 neighbors
// are direct dependents; anything deeper is transitive. Callers treat an
// error as "lineage unavailable" and degrade the categorical signal.
func (c *client) Downstream(ctx context.Context, resource string) (engine.AdjacencySet, error) {
	if c.db == nil {
		return engine.AdjacencySet{}, fmt.Errorf("database not initialized")
	}

	start := time.Now()
	startVertex := fmt.Sprintf("%s/%s", resourceCollection, makeKey(resource))

	query := `
		FOR v, e, p IN 1..@depth OUTBOUND @start GRAPH "lineage"
			RETURN { name: v.name, depth: LENGTH(p.edges) }
	`

	cursor, err := c.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]any{
			"start": startVertex,
			"depth": transitiveDepth,
		},
	})
	if err != nil {
		return engine.AdjacencySet{}, fmt.Errorf("lineage traversal: %w", err)
	}
	defer cursor.Close()

	set := engine.AdjacencySet{
		Direct:     make(map[string]struct{}),
		Transitive: make(map[string]struct{}),
	}
	for cursor.HasMore() {
		var doc struct {
			Name  string `json:"name"`
			Depth int    `json:"depth"`
		}
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return engine.AdjacencySet{}, fmt.Errorf("read document: %w", err)
		}
		if doc.Name == "" {
			continue
		}
		if doc.Depth <= 1 {
			set.Direct[doc.Name] = struct{}{}
		} else {
			set.Transitive[doc.Name] = struct{}{}
		}
	}

	slog.DebugContext(ctx, "lineage traversal completed",
		"resource", resource,
		"direct", len(set.Direct),
		"transitive", len(set.Transitive),
		"duration_ms", time.Since(start).Milliseconds())

	return set, nil
}

func targetCollection(name string) string {
	// Resources and components share a flat namespace in declarations;
	// edges to names containing a dot target resources (schema.table).
	if strings.Contains(name, ".") {
		return resourceCollection
	}
	return componentCollection
}

func makeKey(name string) string {
	hash := md5.Sum([]byte(strings.ToLower(name)))
	return hex.EncodeToString(hash[:])[:16]
}

func makeEdgeKey(from, to string) string {
	hash := md5.Sum([]byte(from + "->" + to))
	return hex.EncodeToString(hash[:])[:16]
}
