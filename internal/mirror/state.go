package mirror

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// stateFileName is the sidecar metadata file inside each mirror directory,
// sitting at the top of the working tree next to the .git directory.
const stateFileName = ".ams-compose-mirror.yaml"

// MirrorState is the sidecar record for one mirror directory.
type MirrorState struct {
	RepoURL        string `yaml:"repo_url"`
	RepoHash       string `yaml:"repo_hash"`
	CurrentRef     string `yaml:"current_ref"`
	ResolvedCommit string `yaml:"resolved_commit"`
	CreatedAt      string `yaml:"created_at"`
	UpdatedAt      string `yaml:"updated_at"`
}

func readState(dir string) (*MirrorState, error) {
	data, err := os.ReadFile(sidecarPath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading mirror state %s", dir)
	}
	var st MirrorState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrapf(err, "parsing mirror state %s", dir)
	}
	return &st, nil
}

func writeState(dir string, st *MirrorState) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "marshaling mirror state")
	}
	return os.WriteFile(sidecarPath(dir), data, 0o644)
}

func sidecarPath(dir string) string {
	return filepath.Join(dir, stateFileName)
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
