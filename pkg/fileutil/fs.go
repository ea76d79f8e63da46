package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// FileSystem は実ファイルシステムと埋め込みファイルシステムを統一的に扱うインターフェース
type FileSystem interface {
	// ReadFile はファイルの内容を読み込む（大文字小文字を無視）
	ReadFile(name string) ([]byte, error)
	// Find は大文字小文字を無視してファイルを検索し、実際のパスを返す
	Find(name string) (string, error)
	// Walk はディレクトリを再帰的に走査する。パスはルートからの相対パス
	Walk(root string, fn fs.WalkDirFunc) error
	// Base はログ表示用のルート名を返す
	Base() string
}

// FS implements FileSystem over an fs.FS.
type FS struct {
	fsys fs.FS
	base string
}

// NewDirFS は実ディレクトリ root を FileSystem として開く
func NewDirFS(root string) *FS {
	return &FS{fsys: os.DirFS(root), base: root}
}

// NewFS は fs.FS（embed.FS や fstest.MapFS）を FileSystem として包む
func NewFS(fsys fs.FS, base string) *FS {
	return &FS{fsys: fsys, base: base}
}

// Base returns the root name given at construction.
func (f *FS) Base() string { return f.base }

// Sub returns a FileSystem rooted at dir.
func (f *FS) Sub(dir string) (*FS, error) {
	actual, err := f.resolve(dir, true)
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(f.fsys, actual)
	if err != nil {
		return nil, err
	}
	return &FS{fsys: sub, base: path.Join(f.base, actual)}, nil
}

// ReadFile reads name, resolving each path element case-insensitively.
func (f *FS) ReadFile(name string) ([]byte, error) {
	actual, err := f.resolve(name, false)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(f.fsys, actual)
}

// Find returns the real path of name.
func (f *FS) Find(name string) (string, error) {
	return f.resolve(name, false)
}

// Walk walks root in lexical order.
func (f *FS) Walk(root string, fn fs.WalkDirFunc) error {
	actual, err := f.resolve(root, true)
	if err != nil {
		return err
	}
	return fs.WalkDir(f.fsys, actual, fn)
}

// IsDir reports whether name exists and is a directory.
func (f *FS) IsDir(name string) bool {
	actual, err := f.resolve(name, true)
	if err != nil {
		return false
	}
	info, err := fs.Stat(f.fsys, actual)
	return err == nil && info.IsDir()
}

// resolve は name を正規化し、存在しない要素を大文字小文字を無視して探す
func (f *FS) resolve(name string, wantDir bool) (string, error) {
	clean := cleanPath(name)
	if clean == "." {
		return clean, nil
	}
	if _, err := fs.Stat(f.fsys, clean); err == nil {
		return clean, nil
	}

	parts := strings.Split(clean, "/")
	dir := "."
	for i, part := range parts {
		last := i == len(parts)-1
		actual, err := findEntry(f.fsys, dir, part, !last || wantDir)
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		dir = path.Join(dir, actual)
	}
	return dir, nil
}

// cleanPath は "\" 区切りや先頭の "/" を fs.FS のパス形式に直す
func cleanPath(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return "."
	}
	return path.Clean(name)
}
