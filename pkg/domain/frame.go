package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	dataURIPrefix    = "data:"
	dataURISeparator = ";base64,"
)

// ErrMalformedInput は data URI が `data:<mime>;base64,<payload>` の
// 構造を持たない場合に返されます。
var ErrMalformedInput = fmt.Errorf("data URIの形式が不正です")

// Frame はパイプラインを流れる1枚の画像単位です。
// Payload（base64テキスト）・MimeType・URI の3フィールドは常に整合しており、
// URI は必ず "data:" + MimeType + ";base64," + Payload の連結になります。
// Frame は生成後に変更されない値型で、スタイル変換の結果は
// 元 Frame の書き換えではなく常に新しい Frame として構築されます。
type Frame struct {
	Payload  string
	MimeType string
	URI      string
}

// FrameSequence は 0 起点の順序付き Frame 列です。
// 挿入順がそのまま時間順・表示順であり、一度追加された Frame が
// 取り除かれることはありません（スタイル失敗時は同じ位置に
// フォールバック Frame が入るため、列の長さは常に保存されます）。
type FrameSequence []Frame

// EncodeFrame は MIME タイプと base64 ペイロードから Frame を構築します。
// 純粋なコンストラクタであり、整形済みの入力に対して常に成功します。
func EncodeFrame(mimeType, payload string) Frame {
	return Frame{
		Payload:  payload,
		MimeType: mimeType,
		URI:      dataURIPrefix + mimeType + dataURISeparator + payload,
	}
}

// FrameFromBytes は生バイト列を base64 エンコードして Frame を構築します。
func FrameFromBytes(mimeType string, raw []byte) Frame {
	return EncodeFrame(mimeType, base64.StdEncoding.EncodeToString(raw))
}

// DecodeDataURI は自己完結型の data URI を MIME タイプとペイロードに
// 分解して Frame を返します。期待する構造を持たない参照には
// ErrMalformedInput を返します。
func DecodeDataURI(uri string) (Frame, error) {
	rest, ok := strings.CutPrefix(uri, dataURIPrefix)
	if !ok {
		return Frame{}, fmt.Errorf("%w: prefix がありません", ErrMalformedInput)
	}
	mimeType, payload, ok := strings.Cut(rest, dataURISeparator)
	if !ok || mimeType == "" {
		return Frame{}, fmt.Errorf("%w: %q", ErrMalformedInput, truncateForError(uri))
	}
	return EncodeFrame(mimeType, payload), nil
}

// Bytes はペイロードをデコードして生バイト列を返します。
func (f Frame) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(f.Payload)
	if err != nil {
		return nil, fmt.Errorf("ペイロードのbase64デコードに失敗しました: %w", err)
	}
	return data, nil
}

// truncateForError はエラーメッセージに長大な URI を丸ごと載せないための
// 切り詰めヘルパーです。
func truncateForError(s string) string {
	const max = 48
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
