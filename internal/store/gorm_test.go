package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	driverErr := errors.New("connection reset")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"wrapped not found", fmt.Errorf("query: %w", gorm.ErrRecordNotFound), ErrNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, ErrConflict},
		{"fk violated", gorm.ErrForeignKeyViolated, ErrNotFound},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, ErrConflict},
		{"pg fk violation", &pgconn.PgError{Code: "23503"}, ErrNotFound},
		{"other", driverErr, driverErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("translate(nil) = %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("translate(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSortOrder(t *testing.T) {
	cases := map[string]SortOrder{
		"":               SortNewest,
		"newest":         SortNewest,
		"oldest":         SortOldest,
		"most-liked":     SortMostLiked,
		"most-commented": SortMostCommented,
		"random":         SortNewest,
	}
	for in, want := range cases {
		if got := ParseSortOrder(in); got != want {
			t.Errorf("ParseSortOrder(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSortClause(t *testing.T) {
	if got := sortClause(SortMostLiked); got != "like_count DESC, loops.created_at DESC" {
		t.Errorf("most-liked clause = %q", got)
	}
	if got := sortClause(SortOrder("bogus")); got != "loops.created_at DESC" {
		t.Errorf("default clause = %q", got)
	}
}

func TestContainsPatternEscapesWildcards(t *testing.T) {
	cases := map[string]string{
		"coffee":   `%coffee%`,
		"100%_off": `%100\%\_off%`,
		`a\b`:      `%a\\b%`,
		"%":        `%\%%`,
	}
	for in, want := range cases {
		if got := containsPattern(in); got != want {
			t.Errorf("containsPattern(%q) = %q, want %q", in, got, want)
		}
	}
}
