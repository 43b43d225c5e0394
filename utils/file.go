package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes files under Dir and serves them from BaseURL. Used when
// R2 is not configured.
type LocalStore struct {
	Dir     string
	BaseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put saves body to Dir/key. Keys may not escape Dir.
func (l *LocalStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	destPath := filepath.Join(l.Dir, filepath.FromSlash(key))
	if !strings.HasPrefix(destPath, filepath.Clean(l.Dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal key: %s", key)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(destPath, body, 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", l.BaseURL, filepath.ToSlash(key)), nil
}
