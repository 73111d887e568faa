// Package camera はカメラデバイスのオープン・設定・解像度確認を担う
//
// # 責務
// - カメラ番号からデバイスを開き、必ず同じ関数内で解放する
// - 解像度を要求し、デバイスが実際に受け入れた値を読み戻す
// - 候補解像度を順に試す解像度チェック
// - V4L2デバイスの検出とフォーマット・フレームサイズの取得
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - カメラから1フレームずつ読み込みたい
// - カメラがどの解像度に対応しているか調べたい
// - 接続されているカメラの一覧が欲しい
//
// # 仕様
// - Device: OpenCV (gocv) の VideoCapture を抽象化したインターフェース
// - Prober: 固定の候補解像度を要求し、読み戻しで一致・不一致を判定
// - Discovery: blackjack/webcam 経由でV4L2に直接問い合わせ（Linuxのみ）
// - MockDevice / MockCameras / MockDiscovery: テスト用実装
//
// # 前提要件
//   - OpenCV 4.x: gocv のビルドと実行に使用
//     Ubuntu/Debian: sudo apt install libopencv-dev
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
