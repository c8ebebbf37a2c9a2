package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/errors"
	"github.com/weftworks/weft/registrar"
)

func init() {
	RegisterExtensionBuilder("test_extension", func(r *registrar.Registrar) error {
		if _, err := r.SetExtension(registrar.TypeID{}, "test_extension"); err != nil {
			return err
		}
		if _, err := r.AddComponent(registrar.TypeID{Hi: 0xace, Lo: 0xbee},
			"test::Passthrough", func() any { return newSourceOp("passthrough") }); err != nil {
			return err
		}
		_, err := r.AddType(registrar.TypeID{}, "test::Frame")
		return err
	})
}

func TestRegistrarPublishesIntoRuntime(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	reg := r.Registrar()
	extID, err := reg.SetExtension(registrar.TypeID{}, "inline_extension")
	require.NoError(t, err)
	compID, err := reg.AddComponent(registrar.TypeID{}, "inline::Op", nil)
	require.NoError(t, err)
	require.NoError(t, reg.RegisterExtension())

	name, ok := r.TypeName(compID)
	require.True(t, ok)
	assert.Equal(t, "inline::Op", name)
	assert.Contains(t, r.TypeNames(), "inline_extension")

	// Unloading the extension retires every lookup it published.
	require.NoError(t, r.UnloadExtension(extID))
	_, ok = r.TypeName(compID)
	assert.False(t, ok)
	_, ok = r.TypeName(extID)
	assert.False(t, ok)

	err = r.UnloadExtension(extID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTypeUnregistered)
}

func TestResetClearsPriorTypeTable(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	reg := r.Registrar()
	_, err = reg.SetExtension(registrar.TypeID{}, "image_ops")
	require.NoError(t, err)
	gainID, err := reg.AddComponent(registrar.TypeID{}, "image::Gain", nil)
	require.NoError(t, err)
	cropID, err := reg.AddComponent(registrar.TypeID{}, "image::Crop", nil)
	require.NoError(t, err)
	frameID, err := reg.AddType(registrar.TypeID{}, "image::Frame")
	require.NoError(t, err)
	require.NoError(t, reg.RegisterExtension())

	for _, id := range []registrar.TypeID{gainID, cropID, frameID} {
		_, ok := r.TypeName(id)
		require.True(t, ok)
	}

	// Reset under a new extension name retires every prior lookup.
	_, err = reg.Reset(registrar.TypeID{}, "audio_ops")
	require.NoError(t, err)
	require.NoError(t, reg.RegisterExtension())

	for _, id := range []registrar.TypeID{gainID, cropID, frameID} {
		_, ok := r.TypeName(id)
		assert.False(t, ok)
	}
	assert.NotContains(t, r.TypeNames(), "image::Gain")
	assert.Contains(t, r.TypeNames(), "audio_ops")
}

func TestPublishCollisionRejectedWhole(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	reg := r.Registrar()
	_, err = reg.SetExtension(registrar.TypeID{}, "first")
	require.NoError(t, err)
	_, err = reg.AddComponent(registrar.TypeID{Hi: 1, Lo: 1}, "shared::Name", nil)
	require.NoError(t, err)
	require.NoError(t, reg.RegisterExtension())

	other := r.Registrar()
	_, err = other.SetExtension(registrar.TypeID{}, "second")
	require.NoError(t, err)
	_, err = other.AddComponent(registrar.TypeID{}, "shared::Name", nil)
	require.NoError(t, err)
	_, err = other.AddComponent(registrar.TypeID{}, "second::Unique", nil)
	require.NoError(t, err)

	err = other.RegisterExtension()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTypeIDCollision)

	// Nothing from the rejected bundle landed.
	assert.NotContains(t, r.TypeNames(), "second::Unique")
}

func TestLoadExtensionsByName(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	require.NoError(t, r.LoadExtensions([]string{"test_extension"}, nil, ""))
	assert.Contains(t, r.TypeNames(), "test::Passthrough")
	assert.Contains(t, r.TypeNames(), "test::Frame")

	name, ok := r.TypeName(registrar.TypeID{Hi: 0xace, Lo: 0xbee})
	require.True(t, ok)
	assert.Equal(t, "test::Passthrough", name)
}

func TestLoadExtensionsUnknownName(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	err = r.LoadExtensions([]string{"no_such_extension"}, nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTypeUnregistered)
	assert.True(t, errors.IsConfig(err))
}

func TestLoadExtensionsFromManifest(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`version: "1"
extensions:
  - name: test_extension
    path: lib/test.ext
    components:
      - type_name: test::Passthrough
        id: "ace-bee"
`), 0o600))

	require.NoError(t, r.LoadExtensions(nil, []string{manifest}, dir))
	assert.Contains(t, r.TypeNames(), "test::Passthrough")
}

func TestLoadExtensionsManifestIDMismatch(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`version: "1"
extensions:
  - name: test_extension
    path: lib/test.ext
    components:
      - type_name: test::Passthrough
        id: "dead-beef"
`), 0o600))

	err = r.LoadExtensions(nil, []string{manifest}, dir)
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
	assert.Contains(t, err.Error(), "never allocated")
}

func TestLoadExtensionsManifestReservedID(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`version: "1"
extensions:
  - name: test_extension
    path: lib/test.ext
    components:
      - type_name: test::Passthrough
        id: "0-0"
`), 0o600))

	err = r.LoadExtensions(nil, []string{manifest}, dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrReservedTypeID)
}

func TestParseTypeID(t *testing.T) {
	id, err := parseTypeID("ace-bee")
	require.NoError(t, err)
	assert.Equal(t, registrar.TypeID{Hi: 0xace, Lo: 0xbee}, id)

	_, err = parseTypeID("nodash")
	require.Error(t, err)
	_, err = parseTypeID("xyz-123")
	require.Error(t, err)
}
