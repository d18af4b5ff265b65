package repomanager

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/gophreview/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	m, err := Open(context.Background(), "memory://")
	require.NoError(t, err)

	assert.Equal(t, "memory", m.Backend())
	assert.IsType(t, &users.MemoryRepository{}, m.Users())
	require.NoError(t, m.Ping(context.Background()))
	require.NoError(t, m.Close(context.Background()))
}

func TestOpen_BadDSN(t *testing.T) {
	tests := map[string]string{
		"no scheme":      "localhost:5432",
		"unknown scheme": "mysql://root@localhost/db",
		"empty":          "",
	}
	for name, dsn := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Open(context.Background(), dsn)
			require.Error(t, err)
		})
	}
}

func TestMongoDatabaseName(t *testing.T) {
	tests := map[string]string{
		"mongodb://localhost:27017":                     defaultMongoDatabase,
		"mongodb://localhost:27017/":                    defaultMongoDatabase,
		"mongodb://u:p@localhost:27017/reviews":         "reviews",
		"mongodb+srv://cluster.example.net/reviews?w=1": "reviews",
	}
	for dsn, want := range tests {
		got, err := mongoDatabaseName(dsn)
		require.NoError(t, err)
		assert.Equal(t, want, got, dsn)
	}
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://u:xxxxx@db/x", redact("postgres://u:secret@db/x"))
	assert.Equal(t, "memory://", redact("memory://"))
}
