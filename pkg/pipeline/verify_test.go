package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyDashboardID(t *testing.T) {
	t.Run("matching id", func(t *testing.T) {
		data := []byte(`{"id": "` + idArmprod + `", "name": "armprod"}`)
		assert.NoError(t, VerifyDashboardID(data, idArmprod))
	})

	t.Run("mismatched id", func(t *testing.T) {
		data := []byte(`{"id": "` + idBatch + `", "name": "armprod"}`)
		err := VerifyDashboardID(data, idArmprod)
		require.Error(t, err)

		var mismatch *IDMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, idArmprod, mismatch.Want)
		assert.Equal(t, idBatch, mismatch.Got)
	})

	t.Run("missing id", func(t *testing.T) {
		err := VerifyDashboardID([]byte(`{"name": "armprod"}`), idArmprod)
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		err := VerifyDashboardID([]byte(`{"id":`), idArmprod)
		require.Error(t, err)
		var mismatch *IDMismatchError
		assert.False(t, errors.As(err, &mismatch))
	})
}

func TestValidateDefinition(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		data := []byte(`{"id": "` + idArmprod + `", "name": "armprod", "tiles": [{}, {}, {}]}`)
		info, err := ValidateDefinition(data)
		require.NoError(t, err)

		assert.Equal(t, "armprod", info.Name)
		assert.Equal(t, idArmprod, info.ID)
		assert.Equal(t, 3, info.TileCount)
	})

	t.Run("empty tiles array is valid", func(t *testing.T) {
		info, err := ValidateDefinition([]byte(`{"name": "empty", "tiles": []}`))
		require.NoError(t, err)
		assert.Equal(t, 0, info.TileCount)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := ValidateDefinition([]byte(`{"name": "", "tiles": []}`))
		assert.Error(t, err)
	})

	t.Run("missing tiles", func(t *testing.T) {
		_, err := ValidateDefinition([]byte(`{"name": "x"}`))
		assert.Error(t, err)
	})

	t.Run("tiles not an array", func(t *testing.T) {
		_, err := ValidateDefinition([]byte(`{"name": "x", "tiles": "none"}`))
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ValidateDefinition([]byte(`tiles:`))
		assert.Error(t, err)
	})
}
