package bridge

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// VideoExtensions is the set of file extensions listed as clips.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".m4v":  true,
	".mxf":  true,
	".avi":  true,
	".webm": true,
	".wav":  true,
	".mp3":  true,
}

// IsMediaFile reports whether filename has a listed extension.
func IsMediaFile(filename string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// labelSeparator joins folder names in clip labels.
const labelSeparator = " / "

// FolderHost serves a directory tree as the clip pool. Files produced by the
// tool are copied into ImportDir.
type FolderHost struct {
	Root      string
	ImportDir string
}

func NewFolderHost(root, importDir string) *FolderHost {
	return &FolderHost{Root: root, ImportDir: importDir}
}

// ListClips walks Root, skipping hidden directories. Clips at the root are
// labelled by file name; deeper clips carry their folder path as a prefix.
func (h *FolderHost) ListClips(ctx context.Context) ([]Clip, error) {
	if strings.TrimSpace(h.Root) == "" {
		return nil, fmt.Errorf("%w: no media folder configured", ErrUnavailable)
	}
	info, err := os.Stat(h.Root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: media folder %s is not a directory", ErrUnavailable, h.Root)
	}

	var clips []Clip
	err = filepath.WalkDir(h.Root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p != h.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !IsMediaFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(h.Root, p)
		if err != nil {
			return nil
		}
		clips = append(clips, Clip{
			Label:  strings.Join(strings.Split(filepath.ToSlash(rel), "/"), labelSeparator),
			Handle: p,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(clips, func(i, j int) bool { return clips[i].Label < clips[j].Label })
	return clips, nil
}

// ResolveClipPath returns the clip's file path after checking that it still
// exists inside Root.
func (h *FolderHost) ResolveClipPath(_ context.Context, clip Clip) (string, error) {
	path := clip.Handle
	if path == "" {
		return "", fmt.Errorf("%w: clip %q has no file", ErrInputIncomplete, clip.Label)
	}
	rel, err := filepath.Rel(h.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("clip %q is outside the media folder", clip.Label)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("resolve clip %q: %w", clip.Label, err)
	}
	return path, nil
}

// ImportProducedFile copies path into ImportDir under a sanitized name,
// never overwriting an earlier import.
func (h *FolderHost) ImportProducedFile(_ context.Context, path string) error {
	if strings.TrimSpace(h.ImportDir) == "" {
		return fmt.Errorf("%w: no import folder configured", ErrUnavailable)
	}
	if err := os.MkdirAll(h.ImportDir, 0755); err != nil {
		return fmt.Errorf("create import dir: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open produced file: %w", err)
	}
	defer src.Close()

	ext := filepath.Ext(path)
	name := SanitizeName(strings.TrimSuffix(filepath.Base(path), ext), 120)
	if name == "" {
		name = "timeline"
	}
	dst, err := createUnique(h.ImportDir, name, ext)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return fmt.Errorf("copy produced file: %w", err)
	}
	return dst.Close()
}

func (h *FolderHost) CurrentEditContext(context.Context) (EditContext, error) {
	return EditContext{}, fmt.Errorf("%w: a media folder has no timeline", ErrUnavailable)
}

func (h *FolderHost) SubmitRenderJob(context.Context) error {
	return fmt.Errorf("%w: a media folder cannot render", ErrUnavailable)
}

func (h *FolderHost) ClosePanel(context.Context) error { return nil }

func createUnique(dir, name, ext string) (*os.File, error) {
	for i := 0; i < 1000; i++ {
		candidate := name + ext
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", name, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create import file: %w", err)
		}
	}
	return nil, fmt.Errorf("too many imports named %s%s", name, ext)
}

// SanitizeName keeps letters, digits and a few safe punctuation marks,
// replacing everything else with an underscore.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}
