// Package keystore は単一の不透明なAPIキーをローカルに保存します。
// 保存されるのはこのキーだけで、他の永続状態はありません。
package keystore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// KeyName はローカルストア上の既知のキー名です。
	KeyName = "gemini_api_key"
	// EnvVar は環境変数による既定値の供給元です。設定されていれば
	// 保存済みの値より優先されます。
	EnvVar = "GEMINI_API_KEY"

	appDirName = "gemini-style-kit"
)

// Store はファイルベースのキー保存庫です。
type Store struct {
	dir string
}

// New はユーザー設定ディレクトリ配下の保存庫を開きます。
func New() (*Store, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("設定ディレクトリを特定できませんでした: %w", err)
	}
	return NewAt(filepath.Join(base, appDirName)), nil
}

// NewAt は任意のディレクトリを使う保存庫を開きます（テスト用途）。
func NewAt(dir string) *Store {
	return &Store{dir: dir}
}

// Load はAPIキーを返します。環境変数が設定されていればそちらを優先し、
// どちらにも無ければ空文字列を返します（エラーではありません）。
func (s *Store) Load() (string, error) {
	if v := os.Getenv(EnvVar); v != "" {
		return v, nil
	}

	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("APIキーの読み取りに失敗しました: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save はAPIキーを保存します。
func (s *Store) Save(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("空のAPIキーは保存できません")
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("保存先ディレクトリの作成に失敗しました: %w", err)
	}
	if err := os.WriteFile(s.path(), []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("APIキーの保存に失敗しました: %w", err)
	}
	return nil
}

// Invalidate は保存済みのAPIキーを破棄します。認証エラー
// （無効・期限切れの資格情報）の後に呼ばれます。
func (s *Store) Invalidate() error {
	err := os.Remove(s.path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("APIキーの破棄に失敗しました: %w", err)
	}
	return nil
}

func (s *Store) path() string {
	return filepath.Join(s.dir, KeyName)
}
