package logo

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/logo-cli/internal/model"
)

// writeBoth stores identical bytes as <stem>.<ext> in the backup and
// session directories and returns the two paths.
func writeBoth(companyName, ext string, data []byte, backupDir, sessionDir string) (backupPath, sessionPath string, err error) {
	name := model.FileStem(companyName) + "." + ext

	backupPath = filepath.Join(backupDir, name)
	if err := writeFile(backupPath, data); err != nil {
		return "", "", err
	}

	sessionPath = filepath.Join(sessionDir, name)
	if err := writeFile(sessionPath, data); err != nil {
		return "", "", err
	}
	return backupPath, sessionPath, nil
}

// writeFile writes through a temp file and rename so a concurrent reader
// never sees a partial logo.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "logo: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".logo-*")
	if err != nil {
		return eris.Wrapf(err, "logo: create temp in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "logo: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "logo: close %s", path)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "logo: chmod %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "logo: rename into %s", path)
	}
	return nil
}
