package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	// Test with regular path
	persistence := NewPersistence("/tmp/test")
	fp := persistence.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)

	// Test with file:// prefix
	persistence = NewPersistence("file:///tmp/test")
	fp = persistence.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_Close(t *testing.T) {
	persistence := NewPersistence("./test-data")
	err := persistence.Close(t.Context())
	assert.NoError(t, err)
}

func TestPersistence_HealthCheck(t *testing.T) {
	testDir := t.TempDir()

	persistence := NewPersistence(testDir)
	err := persistence.HealthCheck(t.Context())
	require.NoError(t, err)

	missing := NewPersistence(testDir + "/does-not-exist")
	err = missing.HealthCheck(t.Context())
	assert.Error(t, err)
}

func TestPersistence_Repositories(t *testing.T) {
	persistence := NewPersistence(t.TempDir())

	assert.NotNil(t, persistence.ModelRepository())
	assert.NotNil(t, persistence.AgentRepository())
	assert.NotNil(t, persistence.LinkRepository())
	assert.NotNil(t, persistence.AuditLogRepository())
}
