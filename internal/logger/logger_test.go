package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amm.log")
	cfg := DefaultConfig()
	cfg.LogFile = path
	cfg.Compress = false

	log, err := New(cfg)
	require.NoError(t, err)

	pool := solana.NewWallet().PublicKey()
	log.WithPool(pool, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()).Info("pool created")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"pool created"`)
	assert.Contains(t, string(data), pool.String())
}

func TestNew_NilConfigWithoutFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFile = ""

	log, err := New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, log.WithComponent("runtime"))
	assert.NotNil(t, log.WithTransaction("tx-1"))
}

func TestPrettyEncoder(t *testing.T) {
	enc := PrettyEncoder()
	entry := zapcore.Entry{
		Level:      zapcore.WarnLevel,
		Time:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		LoggerName: "amm",
		Message:    "slippage exceeded",
	}

	buf, err := enc.EncodeEntry(entry, []zapcore.Field{zap.Uint64("min_out", 10)})
	require.NoError(t, err)
	defer buf.Free()

	line := buf.String()
	assert.Contains(t, line, "03:04:05.000")
	assert.Contains(t, line, colorYellow+"[WARN]"+colorReset)
	assert.Contains(t, line, "slippage exceeded")
	assert.Contains(t, line, `"min_out": 10`)
}

func TestNew_Pretty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFile = ""
	cfg.Pretty = true

	log, err := New(cfg)
	require.NoError(t, err)
	log.Info("ready")
}

func TestClose_ReleasesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amm.log")
	cfg := DefaultConfig()
	cfg.LogFile = path
	cfg.Compress = false

	log, err := New(cfg)
	require.NoError(t, err)
	log.Error("storage unavailable")
	_ = log.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"storage unavailable"`)
	assert.NotPanics(t, func() { _ = log.Close() })
}
