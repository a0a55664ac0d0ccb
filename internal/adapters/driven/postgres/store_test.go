package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

var itemColumnNames = []string{
	"id", "kind", "chunk_id", "workspace_id", "organization_id", "source", "type",
	"title", "body", "author", "actor_id", "url", "occurred_at", "significance", "labels", "visibility",
}

var occurred = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newDBWithMock(t *testing.T) (*DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DB{DB: db}, mock, func() { _ = db.Close() }
}

func itemRow(id, title string, extra ...driver.Value) []driver.Value {
	row := []driver.Value{
		id, "document", nil, "ws_123", "org_1", "github", "pull_request",
		title, "body of " + id, "alice", "user_alice", nil, occurred, int64(60), "{billing,payments}", "org",
	}
	return append(row, extra...)
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLexicalIndexClassifiesMatches(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	cols := append(append([]string{}, itemColumnNames...), "exact_terms", "prefix_terms", "ident", "sim", "snippet")
	mock.ExpectQuery("FROM items i").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(itemRow("doc_exact", "Billing incident", int64(2), int64(2), false, 0.4, "billing <b>incident</b>")...).
			AddRow(itemRow("doc_prefix", "Billings", int64(0), int64(1), false, 0.2, nil)...).
			AddRow(itemRow("doc_fuzzy", "Bilings", int64(0), int64(0), false, 0.7, nil)...))

	idx := NewLexicalIndex(db)
	hits, err := idx.Search(context.Background(), driven.LexicalQuery{
		Text:   "billing incident",
		Terms:  []string{"billing", "incident"},
		Target: domain.WorkspaceTarget("org_1", "ws_123"),
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}

	want := []struct {
		id       string
		match    driven.MatchKind
		coverage float64
	}{
		{"doc_exact", driven.MatchExact, 1},
		{"doc_prefix", driven.MatchPrefix, 0.5},
		{"doc_fuzzy", driven.MatchFuzzy, 0},
	}
	for i, w := range want {
		if hits[i].Item.ID != w.id || hits[i].Match != w.match || hits[i].Coverage != w.coverage {
			t.Errorf("hit %d = %s/%s/%v, want %s/%s/%v", i, hits[i].Item.ID, hits[i].Match, hits[i].Coverage, w.id, w.match, w.coverage)
		}
	}
	if hits[2].Similarity != 0.7 {
		t.Errorf("fuzzy similarity = %v, want 0.7", hits[2].Similarity)
	}
	if hits[0].Snippet == "" {
		t.Error("expected snippet on exact hit")
	}
	if got := hits[0].Item.Labels; len(got) != 2 || got[0] != "billing" {
		t.Errorf("labels = %v", got)
	}
	expectationsMet(t, mock)
}

func TestLexicalIndexSkipsEmptyQuery(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	hits, err := NewLexicalIndex(db).Search(context.Background(), driven.LexicalQuery{Text: "   "})
	if err != nil || hits != nil {
		t.Fatalf("Search() = %v, %v; want nil, nil", hits, err)
	}
	expectationsMet(t, mock)
}

func TestLexicalIndexWrapsQueryError(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	boom := errors.New("connection reset")
	mock.ExpectQuery("FROM items i").WillReturnError(boom)

	_, err := NewLexicalIndex(db).Search(context.Background(), driven.LexicalQuery{Text: "ENG-142", Identifier: true})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestClassifyMatch(t *testing.T) {
	item := &domain.Item{ID: "x"}
	tests := []struct {
		name     string
		exact    int
		prefix   int
		ident    bool
		want     driven.MatchKind
		coverage float64
	}{
		{"identifier hit is full coverage", 0, 0, true, driven.MatchExact, 1},
		{"exact beats prefix", 1, 3, false, driven.MatchExact, 0.25},
		{"prefix only", 0, 2, false, driven.MatchPrefix, 0.5},
		{"trigram only", 0, 0, false, driven.MatchFuzzy, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit := classifyMatch(item, 4, tt.exact, tt.prefix, tt.ident, 0.3, "")
			if hit.Match != tt.want || hit.Coverage != tt.coverage {
				t.Errorf("got %s/%v, want %s/%v", hit.Match, hit.Coverage, tt.want, tt.coverage)
			}
		})
	}
}

func TestScopeAndFilterClauses(t *testing.T) {
	after := occurred.Add(-time.Hour)
	var a args
	scope := scopeClause("i", domain.OrgTarget("org_1"), &a)
	if scope != "i.organization_id = $1" {
		t.Errorf("scope = %q", scope)
	}

	clauses := filterClauses("i", domain.Filters{
		Sources: []string{"GitHub"},
		Authors: []string{"Alice"},
		After:   &after,
	}, &a)
	if len(clauses) != 3 {
		t.Fatalf("expected 3 clauses, got %v", clauses)
	}
	if !strings.Contains(clauses[1], "$3") || strings.Count(clauses[1], "$3") != 2 {
		t.Errorf("author clause should reuse one placeholder: %q", clauses[1])
	}
	if len(a) != 4 {
		t.Errorf("expected 4 args, got %d", len(a))
	}

	ws := scopeClause("r", domain.WorkspaceTarget("org_1", "ws_9"), &a)
	if ws != "(r.workspace_id = $5 AND r.organization_id = $6)" || a[4] != "ws_9" || a[5] != "org_1" {
		t.Errorf("workspace scope = %q (%v)", ws, a[4:])
	}

	bare := scopeClause("r", domain.WorkspaceTarget("", "ws_9"), &a)
	if bare != "r.workspace_id = $7" {
		t.Errorf("workspace scope without organization = %q", bare)
	}
}

func TestItemStoreGetItems(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	mock.ExpectQuery("FROM items i WHERE i.id = ANY").
		WillReturnRows(sqlmock.NewRows(itemColumnNames).AddRow(itemRow("obs_1", "Deploy failed")...))

	items, err := NewItemStore(db).GetItems(context.Background(), []string{"obs_1", "obs_missing"})
	if err != nil {
		t.Fatalf("GetItems() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	got := items["obs_1"]
	if got.Title != "Deploy failed" || got.ActorID != "user_alice" || got.URL != "" || got.Visibility != domain.VisibilityOrg {
		t.Errorf("unexpected item %+v", got)
	}
	if got.Importance() != 0.6 {
		t.Errorf("importance = %v", got.Importance())
	}
	expectationsMet(t, mock)
}

func TestItemStoreGetItemsNoIDs(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	items, err := NewItemStore(db).GetItems(context.Background(), nil)
	if err != nil || len(items) != 0 {
		t.Fatalf("GetItems(nil) = %v, %v", items, err)
	}
	expectationsMet(t, mock)
}

var entityColumnNames = []string{"id", "workspace_id", "organization_id", "kind", "name", "aliases"}

func TestGraphStoreResolveFallsBackToFuzzy(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	mock.ExpectQuery("lower\\(n.alias\\) = m.mention").
		WillReturnRows(sqlmock.NewRows(append(entityColumnNames, "mention")))
	mock.ExpectQuery("similarity\\(lower\\(n.alias\\), m.mention\\) >=").
		WillReturnRows(sqlmock.NewRows(append(entityColumnNames, "mention", "sim")).
			AddRow("svc_checkout", "ws_123", "org_1", "service", "checkout", "{checkout-svc}", "checkout-service", 0.55))

	store := NewGraphStore(db)
	matches, err := store.ResolveEntities(context.Background(), domain.WorkspaceTarget("org_1", "ws_123"), []string{"checkout-service"}, true)
	if err != nil {
		t.Fatalf("ResolveEntities() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0]
	if m.Exact || m.Confidence != 0.55 || m.Entity.ID != "svc_checkout" || len(m.Entity.Aliases) != 1 {
		t.Errorf("unexpected match %+v", m)
	}
	expectationsMet(t, mock)
}

func TestGraphStoreResolveExactOnly(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	mock.ExpectQuery("lower\\(n.alias\\) = m.mention").
		WillReturnRows(sqlmock.NewRows(append(entityColumnNames, "mention")))

	matches, err := NewGraphStore(db).ResolveEntities(context.Background(), domain.OrgTarget("org_1"), []string{"billing"}, false)
	if err != nil || len(matches) != 0 {
		t.Fatalf("ResolveEntities() = %v, %v", matches, err)
	}
	expectationsMet(t, mock)
}

var relationshipColumnNames = []string{"id", "type", "from_id", "to_id", "confidence", "detected_by", "since", "until", "evidence_ids"}

func TestGraphStoreNeighborsDropsDiscardedProposals(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	until := occurred.Add(24 * time.Hour)
	mock.ExpectQuery("FROM relationships r WHERE").
		WillReturnRows(sqlmock.NewRows(relationshipColumnNames).
			AddRow("rel_owned", "OWNED_BY", "svc_billing", "team_billing", 0.9, "rule", nil, until, "{doc_1}").
			AddRow("rel_weak", "OWNED_BY", "svc_billing", "team_other", 0.4, "llm", nil, nil, "{}").
			AddRow("rel_review", "OWNED_BY", "svc_billing", "team_maybe", 0.7, "llm", nil, nil, "{}"))

	edges, err := NewGraphStore(db).Neighbors(context.Background(), domain.WorkspaceTarget("org_1", "ws_123"),
		[]string{"svc_billing"}, []domain.EdgeType{domain.EdgeOwnedBy, domain.EdgeMemberOf})
	if err != nil {
		t.Fatalf("Neighbors() error = %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	if edges[0].ID != "rel_owned" || edges[0].Until == nil || edges[0].Since != nil || edges[0].EvidenceIDs[0] != "doc_1" {
		t.Errorf("unexpected edge %+v", edges[0])
	}
	if edges[1].Visible() {
		t.Error("edge under review should not be visible")
	}
	expectationsMet(t, mock)
}

func TestGraphStoreLinkedItems(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	cols := append(append([]string{}, itemColumnNames...), "entity_id", "relationship_id")
	mock.ExpectQuery("FROM graph_links l").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(itemRow("doc_rota", "Payments rota", "", "rel_owned")...))

	links, err := NewGraphStore(db).LinkedItems(context.Background(), domain.WorkspaceTarget("org_1", "ws_123"), nil, []string{"rel_owned"}, 5)
	if err != nil {
		t.Fatalf("LinkedItems() error = %v", err)
	}
	if len(links) != 1 || links[0].RelationshipID != "rel_owned" || links[0].EntityID != "" || links[0].Item.ID != "doc_rota" {
		t.Fatalf("unexpected links %+v", links)
	}
	expectationsMet(t, mock)
}

func TestGraphStoreUpsertRejectsLLMOverRule(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("OWNED_BY", "svc_billing", "team_billing").
		WillReturnRows(sqlmock.NewRows(relationshipColumnNames).
			AddRow("rel_owned", "OWNED_BY", "svc_billing", "team_billing", 1.0, "rule", nil, nil, "{}"))
	mock.ExpectRollback()

	err := NewGraphStore(db).UpsertRelationship(context.Background(), "ws_123", "org_1", &domain.Relationship{
		ID: "rel_new", Type: domain.EdgeOwnedBy, From: "svc_billing", To: "team_billing",
		Confidence: 0.95, DetectedBy: domain.DetectedByLLM,
	})
	if !errors.Is(err, ErrEdgeRejected) {
		t.Fatalf("expected ErrEdgeRejected, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestGraphStoreUpsertInsertsNewEdge(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(relationshipColumnNames))
	mock.ExpectExec("INSERT INTO relationships").
		WithArgs("rel_new", "ws_123", "org_1", "DEPENDS_ON", "svc_a", "svc_b", 0.85, "llm",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewGraphStore(db).UpsertRelationship(context.Background(), "ws_123", "org_1", &domain.Relationship{
		ID: "rel_new", Type: domain.EdgeDependsOn, From: "svc_a", To: "svc_b",
		Confidence: 0.85, DetectedBy: domain.DetectedByLLM,
	})
	if err != nil {
		t.Fatalf("UpsertRelationship() error = %v", err)
	}
	expectationsMet(t, mock)
}

func TestProfileStore(t *testing.T) {
	t.Run("get missing profile", func(t *testing.T) {
		db, mock, done := newDBWithMock(t)
		defer done()

		mock.ExpectQuery("FROM profiles").
			WithArgs("ws_123", "user_nobody").
			WillReturnError(sql.ErrNoRows)

		_, err := NewProfileStore(db).Get(context.Background(), "ws_123", "user_nobody")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("get profile", func(t *testing.T) {
		db, mock, done := newDBWithMock(t)
		defer done()

		mock.ExpectQuery("FROM profiles").
			WillReturnRows(sqlmock.NewRows([]string{"entity_id", "workspace_id", "centroid", "updated_at"}).
				AddRow("user_alice", "ws_123", "{1,0,0.5}", occurred))

		p, err := NewProfileStore(db).Get(context.Background(), "ws_123", "user_alice")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if len(p.Centroid) != 3 || p.Centroid[2] != 0.5 {
			t.Errorf("centroid = %v", p.Centroid)
		}
		expectationsMet(t, mock)
	})

	t.Run("centroids by workspace and actor", func(t *testing.T) {
		db, mock, done := newDBWithMock(t)
		defer done()

		mock.ExpectQuery("JOIN unnest").
			WillReturnRows(sqlmock.NewRows([]string{"workspace_id", "entity_id", "centroid"}).
				AddRow("ws_123", "user_alice", "{0,1}").
				AddRow("ws_456", "user_alice", "{1,0}"))

		keys := []domain.ProfileKey{
			{WorkspaceID: "ws_123", EntityID: "user_alice"},
			{WorkspaceID: "ws_456", EntityID: "user_alice"},
			{WorkspaceID: "ws_123", EntityID: "user_nobody"},
		}
		centroids, err := NewProfileStore(db).Centroids(context.Background(), keys)
		if err != nil {
			t.Fatalf("Centroids() error = %v", err)
		}
		if len(centroids) != 2 {
			t.Fatalf("expected 2 centroids, got %v", centroids)
		}
		if got := centroids[keys[0]]; len(got) != 2 || got[1] != 1 {
			t.Errorf("ws_123 centroid = %v", got)
		}
		if got := centroids[keys[1]]; len(got) != 2 || got[0] != 1 {
			t.Errorf("ws_456 centroid = %v", got)
		}
		if _, ok := centroids[keys[2]]; ok {
			t.Error("missing profile must be absent")
		}
		expectationsMet(t, mock)
	})

	t.Run("no keys skips the query", func(t *testing.T) {
		db, mock, done := newDBWithMock(t)
		defer done()

		centroids, err := NewProfileStore(db).Centroids(context.Background(), nil)
		if err != nil || len(centroids) != 0 {
			t.Fatalf("Centroids(nil) = %v, %v", centroids, err)
		}
		expectationsMet(t, mock)
	})
}

var calibrationColumnNames = []string{
	"workspace_id", "weights", "rerank_threshold", "rerank_mode", "rerank_window",
	"recall_floor", "scope_bias_delta", "recency_half_life_secs", "personalization_enabled", "updated_at",
}

func TestCalibrationStore(t *testing.T) {
	t.Run("defaults when never calibrated", func(t *testing.T) {
		db, mock, done := newDBWithMock(t)
		defer done()

		mock.ExpectQuery("FROM calibrations").WithArgs("ws_new").WillReturnError(sql.ErrNoRows)

		c, err := NewCalibrationStore(db).GetCalibration(context.Background(), "ws_new")
		if err != nil {
			t.Fatalf("GetCalibration() error = %v", err)
		}
		if c.WorkspaceID != "ws_new" || c.RerankMode != domain.RerankModeBalanced || c.RecallFloor != domain.DefaultRecallFloor {
			t.Errorf("unexpected defaults %+v", c)
		}
		expectationsMet(t, mock)
	})

	t.Run("stored values are normalized", func(t *testing.T) {
		db, mock, done := newDBWithMock(t)
		defer done()

		weights := `{"vector":0.5,"lexical":0.5,"graph":-1,"recency":0,"importance":0,"profile":0}`
		mock.ExpectQuery("FROM calibrations").
			WillReturnRows(sqlmock.NewRows(calibrationColumnNames).
				AddRow("ws_123", weights, 1.5, "thorough", int64(20), int64(5), 0.1, int64(3600), false, occurred))

		c, err := NewCalibrationStore(db).GetCalibration(context.Background(), "ws_123")
		if err != nil {
			t.Fatalf("GetCalibration() error = %v", err)
		}
		if c.Weights.Graph != 0 || c.Weights.Vector != 0.5 {
			t.Errorf("weights = %+v", c.Weights)
		}
		if c.RerankThreshold != domain.DefaultRerankThreshold {
			t.Errorf("threshold = %v, want default", c.RerankThreshold)
		}
		if c.RerankMode != domain.RerankModeThorough || c.RerankWindow != 20 || c.RecencyHalfLife != time.Hour || c.PersonalizationEnabled {
			t.Errorf("unexpected calibration %+v", c)
		}
		expectationsMet(t, mock)
	})

	t.Run("save", func(t *testing.T) {
		db, mock, done := newDBWithMock(t)
		defer done()

		c := domain.DefaultCalibration("ws_123")
		mock.ExpectExec("INSERT INTO calibrations").
			WithArgs("ws_123", sqlmock.AnyArg(), 0.2, "balanced", 50, 3, 0.05, int64(14*24*3600), true, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := NewCalibrationStore(db).SaveCalibration(context.Background(), c); err != nil {
			t.Fatalf("SaveCalibration() error = %v", err)
		}
		expectationsMet(t, mock)
	})
}

func TestAPIKeyStoreGetByPrefix(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	cols := []string{"id", "name", "prefix", "key_hash", "organization_id", "workspace_ids", "actor_id", "created_at", "revoked_at"}
	mock.ExpectQuery("FROM api_keys").
		WithArgs("lf_abcd1234").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("key_1", "ci", "lf_abcd1234", "$2a$10$hash", "org_1", "{ws_123}", nil, occurred, nil))
	mock.ExpectQuery("FROM api_keys").
		WithArgs("lf_missing0").
		WillReturnError(sql.ErrNoRows)

	store := NewAPIKeyStore(db)
	key, err := store.GetByPrefix(context.Background(), "lf_abcd1234")
	if err != nil {
		t.Fatalf("GetByPrefix() error = %v", err)
	}
	if key.IsRevoked() || key.ActorID != "" || len(key.WorkspaceIDs) != 1 || key.Hash != "$2a$10$hash" {
		t.Errorf("unexpected key %+v", key)
	}

	if _, err := store.GetByPrefix(context.Background(), "lf_missing0"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}
