package styler

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrNoImageReturned は API 応答に画像パーツが1つも含まれなかった場合の
// エラーです。回復可能で、呼び出し側は元フレームへフォールバックします。
var ErrNoImageReturned = errors.New("応答に画像が含まれていませんでした")

// ErrAuthentication は資格情報が無効・期限切れの場合のエラーです。
// 局所的には回復不能で、バッチ全体を中断し、保存済みのAPIキーを
// 無効化して再入力を促す必要があります。
var ErrAuthentication = errors.New("APIキー認証に失敗しました")

// TransferError は認証以外の通信・API障害を包む回復可能なエラーです。
// 呼び出し側は該当フレームのみ元フレームへフォールバックします。
type TransferError struct {
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("スタイル変換の通信に失敗しました: %v", e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// IsRecoverable はフレーム単位のフォールバックで吸収してよい
// エラーかどうかを判定します。
func IsRecoverable(err error) bool {
	var te *TransferError
	return errors.Is(err, ErrNoImageReturned) || errors.As(err, &te)
}

// classify は通信層のエラーを呼び出し側が扱う分類に振り分けます。
// HTTP 401/403 は認証エラー、コンテキスト起因はそのまま伝播、
// 残りはすべて回復可能な TransferError です。
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 401 || apiErr.Code == 403 {
			return fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &TransferError{Err: err}
}
