// Package server は、撮影中のタイムラプスを確認するためのHTTPサーバーを提供します。
//
// このパッケージは読み取り専用のモニターです。撮影そのものは行わず、
// 保存先ディレクトリと撮影セッションの状態を公開します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - 撮影セッションの状態と保存済み画像・動画の一覧の配信
//   - 最新画像の配信（縮小・複数カメラの並べ表示に対応）
//   - 新しく保存された画像のMJPEGストリーミング
//   - 静的ファイル（HTML）の配信
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - MJPEGはginのレスポンスへmultipartで直接書き込む（接続時に最新画像を送り、停止時に切断する）
//   - 画像の縮小はdisintegration/imagingを使用
//   - グレースフルシャットダウンに対応
package server
