package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"

	"github.com/AlexM1010/FollowWeb-sub000/internal/checkpoint"
)

// nameFormat namespaces backups by timestamp; the node count is appended
// after a dash, e.g. 20260830T031500-n12400.
const nameFormat = "20060102T150405"

// Manager copies checkpoints into secondary storage and applies retention.
type Manager struct {
	Dest   string
	Policy Policy
	Log    *logrus.Logger
}

// Upload copies the three checkpoint artifacts from srcDir into a new
// timestamped backup directory, then re-reads them there before reporting
// success. A backup that does not verify is removed and the error returned.
func (m *Manager) Upload(srcDir string, nodeCount int, now time.Time) (string, error) {
	name := fmt.Sprintf("%s-n%d", now.UTC().Format(nameFormat), nodeCount)
	destDir := filepath.Join(m.Dest, name)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup dir: %w", err)
	}

	for _, f := range []string{checkpoint.TopologyFile, checkpoint.MetadataFile, checkpoint.RunMetaFile} {
		if err := copyFile(filepath.Join(srcDir, f), filepath.Join(destDir, f)); err != nil {
			os.RemoveAll(destDir)
			return "", fmt.Errorf("copying %s: %w", f, err)
		}
	}

	if err := checkpoint.VerifyDir(destDir); err != nil {
		os.RemoveAll(destDir)
		return "", fmt.Errorf("backup %s failed verification: %w", name, err)
	}

	m.Log.WithFields(logrus.Fields{"backup": name, "nodes": nodeCount}).Info("backup uploaded and verified")
	return name, nil
}

// List returns descriptors for every backup under Dest, sizes summed over
// artifacts. The timestamp comes from the directory name.
func (m *Manager) List() ([]Descriptor, error) {
	entries, err := os.ReadDir(m.Dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Descriptor
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ts, ok := parseBackupName(e.Name())
		if !ok {
			continue
		}
		var size int64
		files, err := os.ReadDir(filepath.Join(m.Dest, e.Name()))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if fi, err := f.Info(); err == nil {
				size += fi.Size()
			}
		}
		out = append(out, Descriptor{Name: e.Name(), Timestamp: ts, Size: size})
	}
	return out, nil
}

// ApplyRetention removes backups the policy prunes and compresses the
// artifacts of backups past the compression age. Returns names removed.
func (m *Manager) ApplyRetention(now time.Time) ([]string, error) {
	backups, err := m.List()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, d := range m.Policy.Prune(backups, now) {
		if err := os.RemoveAll(filepath.Join(m.Dest, d.Name)); err != nil {
			return removed, fmt.Errorf("removing backup %s: %w", d.Name, err)
		}
		removed = append(removed, d.Name)
		m.Log.WithField("backup", d.Name).Info("backup pruned by retention")
	}

	if m.Policy.CompressAfter > 0 {
		for _, d := range backups {
			if now.Sub(d.Timestamp) <= m.Policy.CompressAfter {
				continue
			}
			if containsString(removed, d.Name) {
				continue
			}
			if err := m.compressBackup(filepath.Join(m.Dest, d.Name)); err != nil {
				return removed, err
			}
		}
	}
	return removed, nil
}

// compressBackup xz-compresses each uncompressed artifact in dir, removing
// the original once the compressed copy is complete.
func (m *Manager) compressBackup(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || strings.HasSuffix(name, ".xz") {
			continue
		}
		src := filepath.Join(dir, name)
		if err := compressFile(src, src+".xz"); err != nil {
			return fmt.Errorf("compressing %s: %w", src, err)
		}
		if err := os.Remove(src); err != nil {
			return err
		}
	}
	return nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	w, err := xz.NewWriter(out)
	if err != nil {
		out.Close()
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		out.Close()
		return err
	}
	if err := w.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func parseBackupName(name string) (time.Time, bool) {
	base, _, found := strings.Cut(name, "-")
	if !found {
		return time.Time{}, false
	}
	ts, err := time.Parse(nameFormat, base)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
