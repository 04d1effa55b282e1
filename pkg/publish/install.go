package publish

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"

	"github.com/slinkylib/slinky/pkg/buildsys"
	"github.com/slinkylib/slinky/pkg/slinky"
)

// ErrHomeNotSet is returned when an install path needs $HOME but it isn't set
var ErrHomeNotSet = eris.New("HOME is not set")

// usesHome reports whether word refers to $HOME, either directly or through a leading ~
func usesHome(word *syntax.Word) bool {
	if len(word.Parts) > 0 {
		if lit, ok := word.Parts[0].(*syntax.Lit); ok && (lit.Value == "~" || strings.HasPrefix(lit.Value, "~/")) {
			return true
		}
	}

	found := false
	syntax.Walk(word, func(node syntax.Node) bool {
		if param, ok := node.(*syntax.ParamExp); ok && param.Param != nil && param.Param.Value == "HOME" {
			found = true
		}
		return !found
	})
	return found
}

// ExpandPrefix expands environment variables and a leading ~ in prefix like a shell would.
// Referring to HOME while it is unset or empty returns ErrHomeNotSet, any other unset variable
// is an error as well unless the prefix supplies a default (${VAR:-/usr}).
func ExpandPrefix(prefix string) (string, error) {
	word, err := syntax.NewParser().Document(strings.NewReader(prefix))
	if err != nil {
		return "", eris.Wrapf(err, "failed to parse install prefix %q", prefix)
	}

	if usesHome(word) {
		if home, ok := os.LookupEnv("HOME"); !ok || home == "" {
			return "", ErrHomeNotSet
		}
	}

	cfg := &expand.Config{
		Env:     expand.ListEnviron(os.Environ()...),
		NoUnset: true,
	}
	result, err := expand.Literal(cfg, word)
	if err != nil {
		var unset expand.UnsetParameterError
		if eris.As(err, &unset) {
			return "", eris.Errorf("install prefix %q uses the unset variable %s", prefix, unset.Node.Param.Value)
		}
		return "", eris.Wrapf(err, "failed to expand install prefix %q", prefix)
	}

	if result == "" {
		return "", eris.Errorf("install prefix %q expands to an empty path", prefix)
	}

	return filepath.Clean(result), nil
}

// InstallOptions controls Install
type InstallOptions struct {
	// Manifest, if set, records the installed file
	Manifest *Manifest
	DryRun   bool
	// ShowProgress displays a progress bar on stderr if it's a terminal
	ShowProgress bool
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func getProgressBar(length int64, desc string, visible bool) *progressbar.ProgressBar {
	if !visible || os.Getenv("CI") == "true" || !isTerminal(os.Stderr) {
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

// installName returns the file name src is installed as
func installName(src string) string {
	return slinky.FromString(filepath.ToSlash(src)).Base().String()
}

// Install copies src into destDir, keeping its file mode, and returns the destination path.
// destDir is created if it doesn't exist.
func Install(ctx context.Context, src, destDir string, opts InstallOptions) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return "", eris.Errorf("can't install %s: the file does not exist", src)
		}
		return "", eris.Wrapf(err, "failed to check %s", src)
	}

	if info.IsDir() {
		return "", eris.Errorf("can't install %s: it's a directory", src)
	}

	dest := filepath.Join(destDir, installName(src))
	if opts.DryRun {
		buildsys.Log(ctx).Info().Msgf("would install %s to %s", src, dest)
		return dest, nil
	}

	err = os.MkdirAll(destDir, 0o755)
	if err != nil {
		return "", eris.Wrapf(err, "failed to create %s", destDir)
	}

	err = copyFile(src, dest, info, getProgressBar(info.Size(), "Installing "+installName(src), opts.ShowProgress))
	if err != nil {
		return "", err
	}

	buildsys.Log(ctx).Info().Msgf("installed %s", dest)

	if opts.Manifest != nil {
		absSrc, err := filepath.Abs(src)
		if err != nil {
			absSrc = src
		}

		err = opts.Manifest.Record(dest, absSrc)
		if err != nil {
			return dest, eris.Wrapf(err, "failed to record %s", dest)
		}
	}

	return dest, nil
}

// copyFile writes src to a temporary file next to dest and renames it into place
func copyFile(src, dest string, info os.FileInfo, bar *progressbar.ProgressBar) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return eris.Wrapf(err, "failed to create a temporary file for %s", dest)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	_, err = io.Copy(io.MultiWriter(tmp, bar), in)
	if err != nil {
		tmp.Close()
		return eris.Wrapf(err, "failed to copy %s", src)
	}
	_ = bar.Finish()

	if err = tmp.Close(); err != nil {
		return eris.Wrapf(err, "failed to write %s", dest)
	}

	if err = os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return eris.Wrapf(err, "failed to set the mode of %s", dest)
	}

	if err = os.Rename(tmpName, dest); err != nil {
		return eris.Wrapf(err, "failed to move %s into place", dest)
	}
	return nil
}

// Uninstall removes all files recorded in the manifest and forgets them. Files which are already
// gone are skipped.
func Uninstall(ctx context.Context, m *Manifest, dryRun bool) ([]string, error) {
	entries, err := m.Entries()
	if err != nil {
		return nil, err
	}

	removed := []string{}
	for _, entry := range entries {
		if dryRun {
			buildsys.Log(ctx).Info().Msgf("would remove %s", entry.Dest)
			continue
		}

		err = os.Remove(entry.Dest)
		if err != nil {
			if !eris.Is(err, os.ErrNotExist) {
				return removed, eris.Wrapf(err, "failed to remove %s", entry.Dest)
			}
			buildsys.Log(ctx).Warn().Msgf("%s was already removed", entry.Dest)
		} else {
			removed = append(removed, entry.Dest)
			buildsys.Log(ctx).Info().Msgf("removed %s", entry.Dest)
		}

		if err = m.Forget(entry.Dest); err != nil {
			return removed, eris.Wrapf(err, "failed to update the manifest for %s", entry.Dest)
		}
	}

	return removed, nil
}
