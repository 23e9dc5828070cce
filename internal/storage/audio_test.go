package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_WritesBlobAndReturnsURL(t *testing.T) {
	// Подготовка
	store, err := NewDiskAudioStore(t.TempDir(), "/audio/")
	require.NoError(t, err)

	// Действие
	url, err := store.Save(context.Background(), "SOS-test", ".webm", strings.NewReader("audio-bytes"))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "/audio/SOS-test.webm", url)

	data, err := os.ReadFile(filepath.Join(store.Dir(), "SOS-test.webm"))
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))
}

func TestSave_ReplacesPreviousUpload(t *testing.T) {
	// Подготовка: имя файла строится от dispatchId
	store, err := NewDiskAudioStore(t.TempDir(), "/audio")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Save(ctx, "SOS-test", ".webm", strings.NewReader("first"))
	require.NoError(t, err)

	// Действие
	url, err := store.Save(ctx, "SOS-test", ".webm", strings.NewReader("second"))

	// Проверки
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(store.Dir(), "SOS-test.webm"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Equal(t, "/audio/SOS-test.webm", url)
}

func TestSave_SanitizesDispatchID(t *testing.T) {
	// Подготовка: dispatchId приходит из URL и не обязан быть честным
	store, err := NewDiskAudioStore(t.TempDir(), "/audio")
	require.NoError(t, err)

	// Действие
	url, err := store.Save(context.Background(), "../../etc/passwd", ".webm", strings.NewReader("x"))

	// Проверки: путь не выходит из каталога хранилища
	require.NoError(t, err)
	assert.Equal(t, "/audio/passwd.webm", url)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "passwd.webm", entries[0].Name())
}

func TestSave_UnknownExtensionFallsBack(t *testing.T) {
	// Подготовка
	store, err := NewDiskAudioStore(t.TempDir(), "/audio")
	require.NoError(t, err)

	// Действие
	url, err := store.Save(context.Background(), "SOS-test", ".exe", strings.NewReader("x"))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "/audio/SOS-test.webm", url)
}

func TestSave_CancelledContext(t *testing.T) {
	// Подготовка
	store, err := NewDiskAudioStore(t.TempDir(), "/audio")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Действие
	_, err = store.Save(ctx, "SOS-test", ".webm", strings.NewReader("x"))

	// Проверки: файла нет
	require.Error(t, err)
	entries, readErr := os.ReadDir(store.Dir())
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}
