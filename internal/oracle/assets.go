package oracle

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Assets mapeia o símbolo do token para o id na fonte de preços
type Assets map[string]string

// DefaultAssets são os tokens conhecidos pela plataforma
func DefaultAssets() Assets {
	return Assets{
		"WIF":   "dogwifcoin",
		"PEPE":  "pepe",
		"SHIB":  "shiba-inu",
		"SHIBA": "shiba-inu",
		"TROLL": "troll",
		"PUMP":  "pump-fun",
		"BONK":  "bonk",
		"DOGE":  "dogecoin",
		"SOL":   "solana",
		"BTC":   "bitcoin",
		"ETH":   "ethereum",
	}
}

// ID retorna o id do símbolo na fonte de preços
func (a Assets) ID(symbol string) (string, bool) {
	id, ok := a[strings.ToUpper(strings.TrimSpace(symbol))]
	return id, ok
}

type assetsFile struct {
	Assets map[string]string `yaml:"assets"`
}

// LoadAssets lê um YAML no formato `assets: {WIF: dogwifcoin}` e mescla com os padrões.
// path vazio retorna apenas os padrões.
func LoadAssets(path string) (Assets, error) {
	out := DefaultAssets()
	if path == "" {
		return out, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("oracle.LoadAssets: read %q: %w", path, err)
	}
	var f assetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("oracle.LoadAssets: parse YAML: %w", err)
	}
	for sym, id := range f.Assets {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || id == "" {
			continue
		}
		out[sym] = id
	}
	return out, nil
}
