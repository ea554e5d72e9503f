package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr error
	}{
		{"array", `[{"uuid": "a"}, {"uuid": "b"}]`, 2, nil},
		{"empty array", `[]`, 0, nil},
		{"wrapped", `{"conversations": [{"id": "a"}]}`, 1, nil},
		{"invalid json", `[{"uuid": `, 0, ErrInvalidJSON},
		{"empty input", ``, 0, ErrInvalidJSON},
		{"object without wrapper", `{"uuid": "a"}`, 0, ErrUnsupportedArchive},
		{"wrapper is not an array", `{"conversations": {"a": 1}}`, 0, ErrUnsupportedArchive},
		{"scalar", `"hello"`, 0, ErrUnsupportedArchive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws, err := Decode([]byte(tt.data))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, raws, tt.want)
		})
	}
}

func TestDecode_KeepsRawRecords(t *testing.T) {
	raws, err := Decode([]byte(`[{"uuid": "a", "extra": [1, 2]}]`))
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.JSONEq(t, `{"uuid": "a", "extra": [1, 2]}`, raws[0].JSON())
}

func TestRead(t *testing.T) {
	raws, err := Read(strings.NewReader(`[{"uuid": "a"}]`))
	require.NoError(t, err)
	assert.Len(t, raws, 1)
}

func TestLoad(t *testing.T) {
	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conversations.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"uuid": "a"}, {"uuid": "b"}]`), 0644))

		raws, err := Load(path)
		require.NoError(t, err)
		assert.Len(t, raws, 2)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		assert.Error(t, err)
	})

	t.Run("invalid content names the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`not json`), 0644))

		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidJSON)
		assert.Contains(t, err.Error(), "broken.json")
	})
}
