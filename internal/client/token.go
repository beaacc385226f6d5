package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cli/go-gh/v2/pkg/auth"
	"go.uber.org/zap"
)

const githubHost = "github.com"

// copilotConfigDir locates the directory holding the Copilot editor plugins' credentials.
func copilotConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && isValidDir(xdg) {
		return filepath.Join(xdg, "github-copilot"), nil
	}

	if runtime.GOOS == "windows" {
		if path := os.Getenv("LOCALAPPDATA"); isValidDir(path) {
			return filepath.Join(path, "github-copilot"), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "github-copilot"), nil
}

// isValidDir checks if a given path is a valid directory.
func isValidDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// githubToken finds an OAuth token for the Copilot API. Tokens written by the
// Copilot editor plugins are preferred; the gh CLI's token is the fallback.
func githubToken(logger *zap.Logger) (string, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" && os.Getenv("CODESPACES") != "" {
		logger.Debug("using token", zap.String("source", "GITHUB_TOKEN"))
		return token, nil
	}

	if dir, err := copilotConfigDir(); err == nil {
		for _, name := range []string{"hosts.json", "apps.json"} {
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var hosts map[string]any
			if err := json.Unmarshal(data, &hosts); err != nil {
				logger.Debug("ignoring unreadable copilot config", zap.String("path", path), zap.Error(err))
				continue
			}
			if token := oauthTokenFor(hosts); token != "" {
				logger.Debug("using token", zap.String("source", path))
				return token, nil
			}
		}
	}

	if token, source := auth.TokenForHost(githubHost); token != "" {
		logger.Debug("using token", zap.String("source", source))
		return token, nil
	}

	return "", errors.New("GitHub token not found in environment, Copilot config or gh config")
}

// oauthTokenFor picks the oauth_token of the first github.com entry.
func oauthTokenFor(hosts map[string]any) string {
	for host, data := range hosts {
		if !strings.Contains(host, githubHost) {
			continue
		}
		entry, ok := data.(map[string]any)
		if !ok {
			continue
		}
		if token, ok := entry["oauth_token"].(string); ok && token != "" {
			return token
		}
	}
	return ""
}
