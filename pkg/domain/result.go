package domain

// StyleRequest は1フレーム分のスタイル変換要求です。
// 呼び出しごとに構築される使い捨ての値で、どこにも保存されません。
type StyleRequest struct {
	Frame  Frame
	Prompt string
}

// BatchResult は一括スタイル変換の結果です。
// SucceededCount <= AttemptedCount == len(Frames) が常に成り立ちます。
// フォールバックで元フレームが入った位置も Frames には含まれるため、
// 非致命パスでは入力と同じ長さが保証されます。
type BatchResult struct {
	Frames         FrameSequence
	SucceededCount int
	AttemptedCount int
}

// CodecDescriptor は動画コンテナの選択候補です。
// 静的な優先順位付きリストから選ばれるだけで、動的に生成されることはありません。
type CodecDescriptor struct {
	ContainerMimeType string
	FileExtension     string
	// EncoderName は ffmpeg 側のエンコーダ識別子（libvpx-vp9 等）です。
	EncoderName string
}
