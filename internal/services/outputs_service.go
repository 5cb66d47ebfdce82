package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrIllegalPath marks a request that tried to escape the output root
var ErrIllegalPath = fmt.Errorf("path escapes the output root")

// ErrNotFound marks a missing file or directory inside the output root
var ErrNotFound = fmt.Errorf("not found")

// OutputsService is a read-only browser over the pipeline output tree.
// Every path coming from the API is resolved against the root and
// rejected when it escapes it.
type OutputsService struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

func NewOutputsService(root string, logger *slog.Logger) *OutputsService {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return &OutputsService{
		root:   abs,
		logger: logger.With(slog.String("component", "outputs_service")),
		now:    time.Now,
	}
}

// safeJoin resolves rel under the output root, refusing ".." escapes
func (s *OutputsService) safeJoin(rel string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	full = filepath.Clean(full)
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", ErrIllegalPath
	}
	return full, nil
}

// Sites lists the site directories directly under the output root
func (s *OutputsService) Sites() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("cannot read output root: %w", err)
	}
	var sites []string
	for _, e := range entries {
		if e.IsDir() {
			sites = append(sites, e.Name())
		}
	}
	sort.Strings(sites)
	return sites, nil
}

// Tree lists the entries of one directory inside the output root
func (s *OutputsService) Tree(rel string) ([]string, error) {
	full, err := s.safeJoin(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil || !info.IsDir() {
		return nil, ErrNotFound
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// FilePath validates that rel names a regular file inside the output
// root and returns its absolute path for serving.
func (s *OutputsService) FilePath(rel string) (string, error) {
	full, err := s.safeJoin(rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return full, nil
}

// LogTail returns the last n lines of today's log file for the site
func (s *OutputsService) LogTail(site string, n int) ([]string, error) {
	rel := filepath.Join(site, "logs", s.now().UTC().Format("20060102")+".log")
	full, err := s.safeJoin(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, ErrNotFound
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
