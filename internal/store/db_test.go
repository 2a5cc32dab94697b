package store

import (
	"database/sql"
	"testing"
	"time"
)

func TestConfigurePool(t *testing.T) {
	cases := []struct {
		name string
		in   PoolConfig
		want PoolConfig
	}{
		{
			name: "defaults",
			want: PoolConfig{MaxOpenConns: 20, MaxIdleConns: 10, ConnMaxLifetime: 30 * time.Minute, ConnMaxIdleTime: 5 * time.Minute},
		},
		{
			name: "configured",
			in:   PoolConfig{MaxOpenConns: 4, MaxIdleConns: 2, ConnMaxLifetime: time.Minute, ConnMaxIdleTime: time.Second},
			want: PoolConfig{MaxOpenConns: 4, MaxIdleConns: 2, ConnMaxLifetime: time.Minute, ConnMaxIdleTime: time.Second},
		},
		{
			name: "idle clamped to open",
			in:   PoolConfig{MaxOpenConns: 3, MaxIdleConns: 8},
			want: PoolConfig{MaxOpenConns: 3, MaxIdleConns: 3, ConnMaxLifetime: 30 * time.Minute, ConnMaxIdleTime: 5 * time.Minute},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// sql.Open does not dial; the pool settings apply without a server.
			db, err := sql.Open("pgx", "postgres://penwise@127.0.0.1:1/penwise")
			if err != nil {
				t.Fatalf("sql.Open() error = %v", err)
			}
			defer db.Close()

			got := configurePool(db, tc.in)
			if got != tc.want {
				t.Fatalf("configurePool() = %+v, want %+v", got, tc.want)
			}
			if stats := db.Stats(); stats.MaxOpenConnections != tc.want.MaxOpenConns {
				t.Fatalf("MaxOpenConnections = %d, want %d", stats.MaxOpenConnections, tc.want.MaxOpenConns)
			}
		})
	}
}
