package schema

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"RequestCriteria/internal/criteria"
)

func TestInitRegistryAppliesDefaults(t *testing.T) {
	reg, err := InitRegistry("testdata/library")
	if err != nil {
		t.Fatalf("InitRegistry: %v", err)
	}
	if diff := cmp.Diff([]string{"Author", "Book", "Country", "Publisher"}, reg.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}

	book, ok := reg.Entity("Book")
	if !ok {
		t.Fatalf("Book not registered")
	}
	if book.Table != "books" || book.PK() != "id" || book.CastOf("in_stock") != "bool" {
		t.Fatalf("unexpected Book metadata: %+v", book)
	}

	cases := []struct {
		entity, rel string
		want        criteria.RelationMetadata
	}{
		{"Book", "author", criteria.RelationMetadata{Name: "author", Target: "Author", JoinKey: "author_id", TargetPrimaryKey: "id", Kind: criteria.BelongsTo}},
		{"Book", "publisher", criteria.RelationMetadata{Name: "publisher", Target: "Publisher", JoinKey: "publisher_ref", TargetPrimaryKey: "id", Kind: criteria.BelongsTo}},
		{"Author", "country", criteria.RelationMetadata{Name: "country", Target: "Country", JoinKey: "country_id", TargetPrimaryKey: "code", Kind: criteria.BelongsTo}},
		{"Author", "books", criteria.RelationMetadata{Name: "books", Target: "Book", JoinKey: "author_id", TargetPrimaryKey: "id", Kind: criteria.HasMany}},
	}
	for _, tc := range cases {
		got, ok := reg.Relation(tc.entity, tc.rel)
		if !ok {
			t.Fatalf("relation %s.%s missing", tc.entity, tc.rel)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("%s.%s mismatch (-want +got):\n%s", tc.entity, tc.rel, diff)
		}
	}
	if _, ok := reg.Relation("Book", "reviews"); ok {
		t.Fatalf("unknown relation should not resolve")
	}
}

func TestSearchableKeepsDeclarationOrder(t *testing.T) {
	reg, err := InitRegistry("testdata/library")
	if err != nil {
		t.Fatalf("InitRegistry: %v", err)
	}
	want := criteria.SearchFieldSpec{
		{Path: criteria.DottedPath{"title"}, Mode: criteria.SearchLike},
		{Path: criteria.DottedPath{"isbn"}, Mode: criteria.SearchEqual},
		{Path: criteria.DottedPath{"author", "name"}, Mode: criteria.SearchILike},
	}
	if diff := cmp.Diff(want, reg.Searchable("Book")); diff != "" {
		t.Fatalf("Book searchable mismatch (-want +got):\n%s", diff)
	}
	want = criteria.SearchFieldSpec{
		{Path: criteria.DottedPath{"name"}, Mode: criteria.SearchEqual},
		{Path: criteria.DottedPath{"email"}, Mode: criteria.SearchLike},
	}
	if diff := cmp.Diff(want, reg.Searchable("Author")); diff != "" {
		t.Fatalf("Author searchable mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryDrivesCompiler(t *testing.T) {
	reg, err := InitRegistry("testdata/library")
	if err != nil {
		t.Fatalf("InitRegistry: %v", err)
	}
	c := criteria.NewCompiler(reg, criteria.DefaultOptions())
	plan, err := c.Compile("Book", reg.Searchable("Book"), criteria.Input{
		Search: "x",
		Filters: []criteria.FilterDescriptor{{
			Field:     criteria.ParsePath("author.country.is_europe"),
			Condition: criteria.Equal,
			Value:     criteria.ScalarValue("1"),
		}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []criteria.Join{
		{LeftTable: "books", LeftColumn: "author_id", RightTable: "authors", RightColumn: "id"},
		{LeftTable: "authors", LeftColumn: "country_id", RightTable: "countries", RightColumn: "code"},
	}
	if diff := cmp.Diff(want, plan.Joins); diff != "" {
		t.Fatalf("joins mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDirRejectsInvalidDefinitions(t *testing.T) {
	cases := map[string]string{
		"testdata/broken":  "unknown key 'joins'",
		"testdata/badcast": "unknown cast 'money'",
		"testdata/missing": "no entity definitions",
	}
	for dir, want := range cases {
		_, err := InitRegistry(dir)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("InitRegistry(%s) err = %v; want %q", dir, err, want)
		}
	}
}

func TestLinkRejectsUnknownTarget(t *testing.T) {
	_, err := NewRegistry(map[string]*Entity{
		"Book": {Name: "Book", Relations: map[string]*Relation{"author": {Model: "Writer"}}},
	})
	if err == nil || !strings.Contains(err.Error(), "model 'Writer' not found") {
		t.Fatalf("expected unknown target error, got %v", err)
	}
}

type fakeStore struct {
	data map[string]string
	sets int
	fail error
}

func (f *fakeStore) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.fail != nil {
		return redis.NewStringResult("", f.fail)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.sets++
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func TestLoadCachedStoresAndReusesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{data: map[string]string{}}

	first, err := LoadCached(ctx, store, "testdata/library", time.Hour)
	if err != nil {
		t.Fatalf("LoadCached: %v", err)
	}
	if store.sets != 1 || len(store.data) != 1 {
		t.Fatalf("expected one snapshot write, got %d", store.sets)
	}
	for key := range store.data {
		if !strings.HasPrefix(key, snapshotKeyPrefix) {
			t.Fatalf("unexpected key %s", key)
		}
	}

	second, err := LoadCached(ctx, store, "testdata/library", time.Hour)
	if err != nil {
		t.Fatalf("LoadCached: %v", err)
	}
	if store.sets != 1 {
		t.Fatalf("second load should hit the snapshot, sets = %d", store.sets)
	}
	if diff := cmp.Diff(first.entities, second.entities); diff != "" {
		t.Fatalf("snapshot round trip changed the registry (-disk +cache):\n%s", diff)
	}
}

func TestLoadCachedFallsBackWhenRedisFails(t *testing.T) {
	store := &fakeStore{data: map[string]string{}, fail: errors.New("connection refused")}
	reg, err := LoadCached(context.Background(), store, "testdata/library", time.Hour)
	if err != nil {
		t.Fatalf("LoadCached: %v", err)
	}
	if _, ok := reg.Entity("Book"); !ok {
		t.Fatalf("registry should be loaded from disk")
	}
}
