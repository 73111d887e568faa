package preview

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// StdinKeys は標準入力が端末の場合に、入力された行の先頭文字を送るチャンネルを返す
// 端末でない場合（サービス実行など）はnilを返し、selectでは常にブロックする
func StdinKeys(ctx context.Context) <-chan rune {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return readKeys(ctx, os.Stdin)
}

// readKeys はrから1行ずつ読み、空行以外の先頭文字を送る
func readKeys(ctx context.Context, r io.Reader) <-chan rune {
	keys := make(chan rune, 1)

	go func() {
		defer close(keys)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			select {
			case keys <- []rune(line)[0]:
			case <-ctx.Done():
				return
			}
		}
	}()

	return keys
}
