// Package securefile provides atomic JSON file writes and the config path layout
// shared by every on-disk store of the bridge.
package securefile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/constants"
)

// AtomicWriteFile writes data to a sibling tmp file and renames it over path,
// so readers observe either the old content or the new content.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"

	_ = os.Remove(tmp)

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return errors.Wrap(err, "write tmp")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "rename")
	}
	return nil
}

// WriteJSON marshals v as pretty JSON and writes it atomically to path.
// Creates parent directories using permDir.
func WriteJSON[T any](path string, v T, permFile, permDir os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), permDir); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal json")
	}

	return AtomicWriteFile(path, b, permFile)
}

// ReadJSON reads and unmarshals JSON from path into T.
// A missing file is reported with an error matching os.ErrNotExist.
func ReadJSON[T any](path string) (T, error) {
	var zero T
	b, err := os.ReadFile(path)
	if err != nil {
		return zero, errors.Wrap(err, "read file")
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, errors.Wrap(err, "unmarshal json")
	}
	return out, nil
}

// Exists reports whether path can be stat'ed.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ConfigPathCandidates returns config paths to try, in priority order.
// NWB_ENV optionally adds a subfolder: local/ or develop/.
func ConfigPathCandidates(app, filename string) ([]string, error) {
	envFolder, err := EnvFolder()
	if err != nil {
		return nil, err
	}
	return configPathCandidatesForEnvFolder(app, filename, envFolder)
}

// ResolvePath returns the first existing candidate, or the highest-priority
// candidate when none exists yet.
func ResolvePath(app, filename string) (string, error) {
	cands, err := ConfigPathCandidates(app, filename)
	if err != nil {
		return "", err
	}
	if len(cands) == 0 {
		return "", errors.New("no config path candidates returned")
	}
	for _, p := range cands {
		if Exists(p) {
			return p, nil
		}
	}
	return cands[0], nil
}

// envFolder == "" means production layout (no subfolder).
func configPathCandidatesForEnvFolder(app, filename, envFolder string) ([]string, error) {
	if app == "" {
		return nil, errors.New("app must not be empty")
	}
	if filename == "" {
		return nil, errors.New("filename must not be empty")
	}

	var paths []string
	seen := map[string]bool{}
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	joinHomeStyle := func(homeLike string) string {
		// <home>/.config/<app>/<env?>/<filename>
		dir := filepath.Join(homeLike, ".config", app)
		if envFolder != "" {
			dir = filepath.Join(dir, envFolder)
		}
		return filepath.Join(dir, filename)
	}

	if realHome := os.Getenv("SNAP_REAL_HOME"); realHome != "" {
		add(joinHomeStyle(realHome))
	}

	if home := os.Getenv("HOME"); home != "" {
		add(joinHomeStyle(home))
	}

	if dir, err := os.UserConfigDir(); err == nil {
		baseDir := filepath.Join(dir, app)
		if envFolder != "" {
			baseDir = filepath.Join(baseDir, envFolder)
		}
		add(filepath.Join(baseDir, filename))
	} else if len(paths) == 0 {
		return nil, errors.Wrap(err, "UserConfigDir")
	}

	return paths, nil
}

func EnvFolder() (string, error) {
	raw := strings.TrimSpace(os.Getenv(constants.EnvFolderVar))
	if raw == "" {
		return "", nil // prod default
	}
	switch strings.ToLower(raw) {
	case "local":
		return "local", nil
	case "dev", "develop", "development":
		return "develop", nil
	case "prod", "production":
		return "", nil
	default:
		return "", errors.Newf("invalid %s %q (allowed: local, develop, empty)", constants.EnvFolderVar, raw)
	}
}
