package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskAudioStore хранит аудиозаписи вызовов на локальном диске и
// отдает внешнюю ссылку вида <baseURL>/<dispatchId>.<ext>. Имя файла
// строится от dispatchId, поэтому повторная загрузка той же записи
// просто замещает предыдущую.
type DiskAudioStore struct {
	dir     string
	baseURL string
}

func NewDiskAudioStore(dir, baseURL string) (*DiskAudioStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio storage dir: %w", err)
	}
	return &DiskAudioStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Save записывает аудиоблоб и возвращает ссылку для клиентов.
func (s *DiskAudioStore) Save(ctx context.Context, dispatchID, ext string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := sanitizeName(dispatchID) + normalizeExt(ext)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}

	return s.baseURL + "/" + name, nil
}

// Dir возвращает каталог хранилища (для раздачи статикой).
func (s *DiskAudioStore) Dir() string { return s.dir }

// sanitizeName отрезает все, что могло бы вывести путь из каталога
func sanitizeName(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "webm", "ogg", "wav", "mp3", "m4a":
		return "." + ext
	}
	return ".webm"
}
