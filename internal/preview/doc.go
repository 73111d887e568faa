// Package preview はカメラ映像のライブ表示とキー入力を扱う
//
// ウィンドウ表示はOpenCVのHighGUIを使う。ウィンドウを使わない撮影では
// StdinKeys で端末からの 'q' 入力を受け付ける。
package preview
