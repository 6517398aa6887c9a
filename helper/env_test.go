package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvLookups(t *testing.T) {
	t.Run("Defaults when unset", func(t *testing.T) {
		t.Setenv("GRADER_TEST_UNSET", "")

		assert.Equal(t, "fallback", EnvString("GRADER_TEST_UNSET", "fallback"))
		i, err := EnvInt("GRADER_TEST_UNSET", 4)
		assert.NoError(t, err)
		assert.Equal(t, 4, i)
		f, err := EnvFloat("GRADER_TEST_UNSET", 5)
		assert.NoError(t, err)
		assert.Equal(t, 5.0, f)
		b, err := EnvBool("GRADER_TEST_UNSET", true)
		assert.NoError(t, err)
		assert.True(t, b)
		assert.Equal(t, []string{"eng"}, EnvList("GRADER_TEST_UNSET", []string{"eng"}))
	})

	t.Run("Parses set values", func(t *testing.T) {
		t.Setenv("GRADER_TEST_INT", "8")
		t.Setenv("GRADER_TEST_FLOAT", "2.5")
		t.Setenv("GRADER_TEST_BOOL", "true")
		t.Setenv("GRADER_TEST_LIST", "eng, deu,,")

		i, err := EnvInt("GRADER_TEST_INT", 0)
		assert.NoError(t, err)
		assert.Equal(t, 8, i)
		f, err := EnvFloat("GRADER_TEST_FLOAT", 0)
		assert.NoError(t, err)
		assert.Equal(t, 2.5, f)
		b, err := EnvBool("GRADER_TEST_BOOL", false)
		assert.NoError(t, err)
		assert.True(t, b)
		assert.Equal(t, []string{"eng", "deu"}, EnvList("GRADER_TEST_LIST", nil))
	})

	t.Run("Invalid values return an error", func(t *testing.T) {
		t.Setenv("GRADER_TEST_INT", "four")

		i, err := EnvInt("GRADER_TEST_INT", 4)
		assert.Error(t, err, "Expected error for non numeric value")
		assert.Equal(t, 4, i, "Expected default on parse error")
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("Missing file is ignored", func(t *testing.T) {
		err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
		assert.NoError(t, err, "Expected missing env file to be ignored")
	})

	t.Run("Loads variables from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "grader.env")
		require.NoError(t, os.WriteFile(path, []byte("GRADER_TEST_FROM_FILE=loaded\n"), 0600))
		t.Setenv("GRADER_TEST_FROM_FILE", "")
		os.Unsetenv("GRADER_TEST_FROM_FILE")

		err := LoadEnvFile(path)
		assert.NoError(t, err)
		assert.Equal(t, "loaded", os.Getenv("GRADER_TEST_FROM_FILE"))
	})
}

func TestDatabaseConfiguration(t *testing.T) {
	t.Run("Reads configuration from env", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "6543")

		config, err := NewDatabaseConfiguration()
		require.NoError(t, err, "Expected NewDatabaseConfiguration to not return an error")
		assert.Equal(t, "6543", config.Port)
		assert.Equal(t, testDatabaseName, config.Database)
		assert.Contains(t, config.DSN(), "localhost:6543", "Expected DSN to contain host and port")
		assert.Contains(t, config.DSN(), "sslmode=disable")
	})

	t.Run("Missing database name fails", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "6543")
		t.Setenv("GRADER_DB_DATABASE", "")

		_, err := NewDatabaseConfiguration()
		assert.Error(t, err, "Expected error without database name")
	})
}
