package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
)

func TestFileRecordCreatesFreshWorld(t *testing.T) {
	dir := t.TempDir()

	r, err := OpenFileRecord(dir, "test")
	require.NoError(t, err)
	defer r.Close()

	require.NotNil(t, r.World())
	assert.Empty(t, r.World().Players)
	assert.Empty(t, r.World().Chunks)

	// Файл создан сразу
	_, err = os.Stat(filepath.Join(dir, "test.vxw"))
	require.NoError(t, err)
}

func TestFileRecordRoundTrip(t *testing.T) {
	dir := t.TempDir()

	r, err := OpenFileRecord(dir, "test")
	require.NoError(t, err)
	seed := r.World().Seed

	require.NoError(t, r.Update(func(w *world.SavedWorld) {
		w.Players["steve"] = world.PlayerState{
			Pos: vec.Vec3F{X: 10, Y: 80, Z: -5},
		}
		w.Merge(vec.Vec3{X: 33, Y: 70, Z: -1}, block.PlankBlock)
	}))
	require.NoError(t, r.Close())

	// Повторное открытие видит зафиксированное состояние
	reopened, err := OpenFileRecord(dir, "test")
	require.NoError(t, err)
	defer reopened.Close()

	w := reopened.World()
	assert.Equal(t, seed, w.Seed, "Сид должен переживать переоткрытие")
	assert.Equal(t, 10.0, w.Players["steve"].Pos.X)

	sc, ok := w.Chunks[vec.Vec3{X: 2, Z: -1}]
	require.True(t, ok, "Правка чанка потеряна")
	assert.Equal(t, block.Plank, sc.Blocks[vec.Vec3{X: 1, Y: 70, Z: 15}].Kind)
	assert.Equal(t, uint64(1), sc.Revision, "Ревизия должна переживать переоткрытие")
}

func TestFileRecordRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.vxw")
	require.NoError(t, os.WriteFile(path, []byte("это не снимок мира"), 0644))

	_, err := OpenFileRecord(dir, "test")
	require.Error(t, err, "Повреждённый файл не должен молча перезаписываться")

	// Файл остался нетронутым
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "это не снимок мира", string(data))
}

func TestFileRecordUpdateIsAtomicOnDisk(t *testing.T) {
	dir := t.TempDir()

	r, err := OpenFileRecord(dir, "test")
	require.NoError(t, err)
	defer r.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Update(func(w *world.SavedWorld) {
			w.Merge(vec.Vec3{X: i, Y: 70, Z: 0}, block.StoneBlock)
		}))

		// После каждого коммита файл читается целиком
		check, err := OpenFileRecord(dir, "test")
		require.NoError(t, err)
		assert.Len(t, check.World().Chunks[vec.Vec3{}].Blocks, i+1)
	}

	// Временные файлы не накапливаются
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBadgerRecordRoundTrip(t *testing.T) {
	dir := t.TempDir()

	r, err := OpenBadgerRecord(dir, "test")
	require.NoError(t, err)
	seed := r.World().Seed

	require.NoError(t, r.Update(func(w *world.SavedWorld) {
		w.Players["alex"] = world.PlayerState{Pos: vec.Vec3F{Y: 100}}
		w.Merge(vec.Vec3{X: -20, Y: 64, Z: 7}, block.SandBlock)
	}))
	require.NoError(t, r.Close())

	reopened, err := OpenBadgerRecord(dir, "test")
	require.NoError(t, err)
	defer reopened.Close()

	w := reopened.World()
	assert.Equal(t, seed, w.Seed)
	assert.Equal(t, 100.0, w.Players["alex"].Pos.Y)

	sc, ok := w.Chunks[vec.Vec3{X: -2, Z: 0}]
	require.True(t, ok)
	assert.Equal(t, block.Sand, sc.Blocks[vec.Vec3{X: 12, Y: 64, Z: 7}].Kind)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	r, err := Open("file", dir, "w1")
	require.NoError(t, err)
	require.IsType(t, &FileRecord{}, r)
	r.Close()

	r, err = Open("badger", dir, "w2")
	require.NoError(t, err)
	require.IsType(t, &BadgerRecord{}, r)
	r.Close()

	_, err = Open("mysql", dir, "w3")
	require.Error(t, err)
}
