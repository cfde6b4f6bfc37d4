package vocab

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testDBSeq atomic.Int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:vocabtest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&VocabularyItem{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestNextLevel(t *testing.T) {
	cases := []struct{ in, want string }{
		{"A1", "A2"},
		{"b1", "B2"},
		{"C1", "C2"},
		{"C2", "C2"},
		{" a2 ", "B1"},
		{"D7", "D7"},
	}
	for _, tc := range cases {
		if got := NextLevel(tc.in); got != tc.want {
			t.Errorf("NextLevel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLevelsAtOrBelow(t *testing.T) {
	got := LevelsAtOrBelow("B1")
	want := []string{"A1", "A2", "B1"}
	if len(got) != len(want) {
		t.Fatalf("LevelsAtOrBelow(B1) = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("LevelsAtOrBelow(B1) = %v, want %v", got, want)
		}
	}
	if LevelsAtOrBelow("nope") != nil {
		t.Fatal("unknown level should yield nil")
	}
}

func TestKnownTerms(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	seed := []VocabularyItem{
		{UserID: 1, Language: "english", Term: "tide", Level: "A2"},
		{UserID: 1, Language: "english", Term: "harbour", Level: "B1"},
		{UserID: 1, Language: "english", Term: "estuary", Level: "C1"}, // above max
		{UserID: 1, Language: "french", Term: "marée", Level: "A2"},   // other language
		{UserID: 2, Language: "english", Term: "pier", Level: "A1"},   // other user
	}
	for i := range seed {
		if err := repo.Insert(ctx, &seed[i]); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	terms, err := repo.KnownTerms(ctx, 1, "english", "B2", 50)
	if err != nil {
		t.Fatalf("known terms: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("want 2 terms, got %v", terms)
	}
	// Newest first.
	if terms[0] != "harbour" || terms[1] != "tide" {
		t.Fatalf("wrong terms or order: %v", terms)
	}

	terms, err = repo.KnownTerms(ctx, 1, "english", "B2", 1)
	if err != nil {
		t.Fatalf("known terms: %v", err)
	}
	if len(terms) != 1 || terms[0] != "harbour" {
		t.Fatalf("limit not applied: %v", terms)
	}

	terms, err = repo.KnownTerms(ctx, 1, "english", "unknown", 50)
	if err != nil || terms != nil {
		t.Fatalf("unknown level should match nothing: %v %v", terms, err)
	}
}
