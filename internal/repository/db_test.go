package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

func TestRebind(t *testing.T) {
	query := `SELECT id FROM users WHERE email = ? AND id = ?`

	pg := &DB{dialect: DialectPostgres}
	if got, want := pg.rebind(query), `SELECT id FROM users WHERE email = $1 AND id = $2`; got != want {
		t.Errorf("rebind() postgres = %q, want %q", got, want)
	}

	for _, d := range []Dialect{DialectMySQL, DialectSQLite} {
		db := &DB{dialect: d}
		if got := db.rebind(query); got != query {
			t.Errorf("rebind() %s = %q, want unchanged", d, got)
		}
	}
}

func TestNewDBUnsupportedDriver(t *testing.T) {
	if _, err := NewDB("oracle", "whatever"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("connection refused"), false},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"mysql other", &mysql.MySQLError{Number: 1045, Message: "Access denied"}, false},
		{"wrapped mysql", fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062}), true},
		{"postgres unique", &pq.Error{Code: "23505"}, true},
		{"postgres fk", &pq.Error{Code: "23503"}, false},
		{"sqlite message", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicateKey(tt.err); got != tt.want {
				t.Errorf("isDuplicateKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLikePattern(t *testing.T) {
	tests := map[string]string{
		"Ada":  "%ada%",
		"50%":  "%50!%%",
		"a_b":  "%a!_b%",
		"wow!": "%wow!!%",
		"":     "%%",
	}
	for in, want := range tests {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMillisRoundTrip(t *testing.T) {
	ms := int64(1767225600123)
	if got := toMillis(fromMillis(ms)); got != ms {
		t.Errorf("toMillis(fromMillis(%d)) = %d", ms, got)
	}
}
