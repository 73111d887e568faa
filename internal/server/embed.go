package server

import (
	"embed"

	"github.com/rs/zerolog/log"
)

//go:embed web/index.html
var embedFS embed.FS

// getIndexHTML returns the index.html content as bytes
func getIndexHTML() []byte {
	data, err := embedFS.ReadFile("web/index.html")
	if err != nil {
		log.Fatal().Err(err).Msg("埋め込みindex.htmlの読み込みに失敗")
	}
	return data
}
