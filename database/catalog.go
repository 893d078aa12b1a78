package database

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mediastore/models"
)

const (
	artifactsCollection = "artifacts"

	defaultPage  = 1
	defaultLimit = 6
	maxLimit     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// ParsePage reads page and limit query values, falling back to 1 and 6.
func ParsePage(page, limit string) Page {
	p, _ := strconv.Atoi(page)
	l, _ := strconv.Atoi(limit)
	if p < 1 {
		p = defaultPage
	}
	if l < 1 {
		l = defaultLimit
	}
	if l > maxLimit {
		l = maxLimit
	}
	return Page{Page: p, Limit: l}
}

func (p Page) Skip() int64 {
	return int64((p.Page - 1) * p.Limit)
}

func (p Page) TotalPages(total int64) int {
	return int(math.Ceil(float64(total) / float64(p.Limit)))
}

// NamePattern builds a case-insensitive file name pattern where runs of
// whitespace match any mix of '-', '_' and ' ': "god war" -> ".*god[-_ ]*war.*".
func NamePattern(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return fmt.Sprintf(".*%s.*", strings.Join(words, "[-_ ]*"))
}

// ArtifactCatalog keeps one document per stored artifact.
type ArtifactCatalog struct {
	coll *mongo.Collection
}

func NewArtifactCatalog(client *mongo.Client, database string) *ArtifactCatalog {
	return &ArtifactCatalog{coll: client.Database(database).Collection(artifactsCollection)}
}

// EnsureIndexes creates the indexes listings rely on. It is idempotent.
func (c *ArtifactCatalog) EnsureIndexes(ctx context.Context) error {
	_, err := c.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "storage_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "uploaded_at", Value: -1}}},
		{Keys: bson.D{{Key: "uploaded_at", Value: -1}}},
	})
	return err
}

func (c *ArtifactCatalog) Record(ctx context.Context, a models.Artifact) error {
	if _, err := c.coll.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert artifact %q: %w", a.StorageKey, err)
	}
	return nil
}

// List returns one page of artifacts, newest first. An empty category lists
// everything.
func (c *ArtifactCatalog) List(ctx context.Context, category string, page Page) ([]models.Artifact, int64, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}
	return c.find(ctx, filter, page)
}

// Search matches file names against NamePattern(name).
func (c *ArtifactCatalog) Search(ctx context.Context, name string, page Page) ([]models.Artifact, int64, error) {
	filter := bson.M{
		"file_name": bson.M{
			"$regex":   NamePattern(name),
			"$options": "i",
		},
	}
	return c.find(ctx, filter, page)
}

func (c *ArtifactCatalog) find(ctx context.Context, filter bson.M, page Page) ([]models.Artifact, int64, error) {
	total, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count artifacts: %w", err)
	}

	findOptions := options.Find().
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit)).
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}})

	cursor, err := c.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("find artifacts: %w", err)
	}
	defer cursor.Close(ctx)

	artifacts := make([]models.Artifact, 0, page.Limit)
	if err := cursor.All(ctx, &artifacts); err != nil {
		return nil, 0, fmt.Errorf("decode artifacts: %w", err)
	}
	return artifacts, total, nil
}
