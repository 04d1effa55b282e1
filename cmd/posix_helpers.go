package cmd

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var helperAnnotations = map[string]string{helperAnnotation: "true"}

// expandItems resolves glob patterns on Windows since cmd.exe doesn't do it for us. Missing
// matches are skipped if ignoreMissing is set.
func expandItems(args []string, ignoreMissing bool) ([]string, error) {
	if runtime.GOOS != "windows" {
		return args, nil
	}

	items := []string{}
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "Failed to resolve pattern %s", arg)
		}

		if matches == nil {
			if ignoreMissing {
				continue
			}
			return nil, eris.Errorf("Pattern %s produced no matches", arg)
		}

		items = append(items, matches...)
	}
	return items, nil
}

// resolveDest returns the target for each item. If dest is an existing directory, items are
// placed inside it, otherwise exactly one item is renamed to dest.
func resolveDest(items []string, dest string) ([]string, error) {
	dest = filepath.Clean(dest)
	destParent := filepath.Dir(dest)
	info, err := os.Stat(destParent)
	if err != nil {
		return nil, eris.Wrapf(err, "Could not find destination directory %s", destParent)
	}

	if !info.IsDir() {
		return nil, eris.Errorf("%s is not a directory!", destParent)
	}

	isDir := false
	info, err = os.Stat(dest)
	if err == nil {
		isDir = info.IsDir()
	} else if !eris.Is(err, os.ErrNotExist) {
		return nil, eris.Wrapf(err, "Failed to retrieve info about destination %s", dest)
	}

	if len(items) > 1 && !isDir {
		return nil, eris.Errorf("Can't place multiple items in %s because it is not a directory!", dest)
	}

	targets := make([]string, len(items))
	for idx, item := range items {
		if isDir {
			targets[idx] = filepath.Join(dest, filepath.Base(item))
		} else {
			targets[idx] = dest
		}
	}
	return targets, nil
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "mv <source>... <dest>",
		Short:       "Cross-platform implementation of the POSIX mv command",
		Annotations: helperAnnotations,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return eris.New("Not enough parameters")
			}

			items, err := expandItems(args[:len(args)-1], false)
			if err != nil {
				return err
			}

			targets, err := resolveDest(items, args[len(args)-1])
			if err != nil {
				return err
			}

			for idx, item := range items {
				err = os.Rename(item, targets[idx])
				if err != nil {
					return eris.Wrapf(err, "Failed to move %s to %s", item, targets[idx])
				}
			}

			return nil
		},
	}
}

func newRmCmd() *cobra.Command {
	rmCmd := &cobra.Command{
		Use:         "rm <path>...",
		Short:       "A cross-platform implementation of the POSIX rm command",
		Annotations: helperAnnotations,
		RunE: func(cmd *cobra.Command, args []string) error {
			recursive, err := cmd.Flags().GetBool("recursive")
			if err != nil {
				return err
			}

			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}

			items, err := expandItems(args, force)
			if err != nil {
				return err
			}

			existing := make([]string, 0, len(items))
			for _, item := range items {
				info, err := os.Lstat(item)
				if err != nil {
					if force && eris.Is(err, os.ErrNotExist) {
						continue
					}
					return eris.Wrapf(err, "Could not stat %s", item)
				}

				if info.IsDir() && !recursive {
					return eris.Errorf("%s is a directory but -r wasn't passed", item)
				}
				existing = append(existing, item)
			}

			for _, item := range existing {
				err := os.RemoveAll(item)
				if err != nil {
					return eris.Wrapf(err, "Could not delete %s", item)
				}
			}

			return nil
		},
	}

	rmCmd.Flags().BoolP("recursive", "r", false, "recursively delete directories")
	rmCmd.Flags().BoolP("force", "f", false, "suppresses errors caused by missing files/folders")
	return rmCmd
}

func newMkdirCmd() *cobra.Command {
	mkdirCmd := &cobra.Command{
		Use:         "mkdir <dir>...",
		Short:       "A cross-platform implementation of the POSIX mkdir command",
		Annotations: helperAnnotations,
		RunE: func(cmd *cobra.Command, args []string) error {
			makeParents, err := cmd.Flags().GetBool("parents")
			if err != nil {
				return err
			}

			for _, item := range args {
				if makeParents {
					err = os.MkdirAll(item, 0o770)
				} else {
					err = os.Mkdir(item, 0o770)
				}

				if err != nil {
					return eris.Wrapf(err, "Failed to create %s", item)
				}
			}

			return nil
		},
	}

	mkdirCmd.Flags().BoolP("parents", "p", false, "create parent directories as needed")
	return mkdirCmd
}

func copyFile(src, dest string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "Failed to open %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return eris.Wrapf(err, "Failed to create %s", dest)
	}

	_, err = io.Copy(out, in)
	if err != nil {
		out.Close()
		return eris.Wrapf(err, "Failed to copy %s to %s", src, dest)
	}

	if err = out.Close(); err != nil {
		return eris.Wrapf(err, "Failed to write %s", dest)
	}

	// OpenFile only applies the mode to new files
	return os.Chmod(dest, mode.Perm())
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		info, err := entry.Info()
		if err != nil {
			return eris.Wrapf(err, "Could not stat %s", path)
		}

		if entry.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		return copyFile(path, target, info.Mode())
	})
}

func newCpCmd() *cobra.Command {
	cpCmd := &cobra.Command{
		Use:         "cp <source>... <dest>",
		Short:       "A cross-platform implementation of the POSIX cp command",
		Annotations: helperAnnotations,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return eris.New("Not enough parameters")
			}

			recursive, err := cmd.Flags().GetBool("recursive")
			if err != nil {
				return err
			}

			items, err := expandItems(args[:len(args)-1], false)
			if err != nil {
				return err
			}

			targets, err := resolveDest(items, args[len(args)-1])
			if err != nil {
				return err
			}

			for idx, item := range items {
				info, err := os.Stat(item)
				if err != nil {
					return eris.Wrapf(err, "Could not stat %s", item)
				}

				if info.IsDir() {
					if !recursive {
						return eris.Errorf("%s is a directory but -r wasn't passed", item)
					}
					err = copyTree(item, targets[idx])
				} else {
					err = copyFile(item, targets[idx], info.Mode())
				}

				if err != nil {
					return eris.Wrapf(err, "Failed to copy %s to %s", item, targets[idx])
				}
			}

			return nil
		},
	}

	cpCmd.Flags().BoolP("recursive", "r", false, "copy directories recursively")
	return cpCmd
}
