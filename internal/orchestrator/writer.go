package orchestrator

import (
	"os"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/pkg/errors"

	"github.com/amscompose/ams-compose/internal/config"
)

// WriteLockfile serializes lock and writes it to projectRoot's lockfile path
// by first writing to a sibling temp file, then renaming it into place, so
// a crash mid-write never leaves a truncated or half-written lockfile on
// disk. Adapted from golang-dep's txn_writer.go SafeWriter, generalized
// from "manifest + lock + vendor, rolled back together" to a single file
// (the orchestrator has no vendor tree and writes its lockfile once, at the
// very end of a batch, so there is nothing else to roll back in tandem).
func WriteLockfile(projectRoot string, lock *config.Lockfile) error {
	data, err := lock.Marshal()
	if err != nil {
		return errors.Wrap(err, "marshaling lockfile")
	}

	target := filepath.Join(projectRoot, config.LockName)
	tmp, err := os.CreateTemp(projectRoot, ".ams-compose.lock.tmp-*")
	if err != nil {
		return errors.Wrap(err, "creating temp lockfile")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp lockfile")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp lockfile")
	}

	if err := renameWithFallback(tmpPath, target); err != nil {
		return errors.Wrapf(err, "moving lockfile into place at %s", target)
	}
	return nil
}

// renameWithFallback renames src to dest, falling back to a copy-then-remove
// when the rename fails across devices (syscall.EXDEV), mirroring
// golang-dep's fs.go renameWithFallback.
func renameWithFallback(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	terr, ok := err.(*os.LinkError)
	if !ok {
		return err
	}
	if runtime.GOOS != "windows" && terr.Err != syscall.EXDEV {
		return terr
	}

	data, rerr := os.ReadFile(src)
	if rerr != nil {
		return rerr
	}
	if werr := os.WriteFile(dest, data, 0o644); werr != nil {
		return werr
	}
	return os.Remove(src)
}
