package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/bookswap-backend/internal/config"
	"github.com/baharkarakas/bookswap-backend/internal/logger"
)

func TestOpenSQLite(t *testing.T) {
	cfg := config.Config{StorageDriver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "s.db")}
	st, err := Open(context.Background(), cfg, false, logger.NewWithWriter("test", &bytes.Buffer{}))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Ping(context.Background()))
	require.NotNil(t, st.Repos.Transactions)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Config{StorageDriver: "mongo"}, false, logger.New("test"))
	require.Error(t, err)
}
