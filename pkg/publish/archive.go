package publish

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"

	"github.com/slinkylib/slinky/pkg/buildsys"
)

// compressor picks the compression for out based on its extension
func compressor(out string) (func(io.Writer) (io.WriteCloser, error), error) {
	switch {
	case strings.HasSuffix(out, ".tar.xz"):
		return func(w io.Writer) (io.WriteCloser, error) {
			return xz.NewWriter(w)
		}, nil
	case strings.HasSuffix(out, ".tar.br"):
		return func(w io.Writer) (io.WriteCloser, error) {
			return brotli.NewWriterLevel(w, brotli.BestCompression), nil
		}, nil
	default:
		return nil, eris.Errorf("%s has an unsupported extension, use .tar.xz or .tar.br", out)
	}
}

// Archive writes files into the archive out which is compressed with xz (.tar.xz) or brotli
// (.tar.br). Each file is stored as dir/<base name>.
func Archive(ctx context.Context, out, dir string, files ...string) error {
	if len(files) == 0 {
		return eris.New("no files to archive")
	}

	compress, err := compressor(out)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(out), 0o755)
	if err != nil {
		return eris.Wrapf(err, "failed to create the directory for %s", out)
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".*")
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", out)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	defer tmp.Close()

	compressed, err := compress(tmp)
	if err != nil {
		return eris.Wrap(err, "failed to initialize compression")
	}

	archive := tar.NewWriter(compressed)
	for _, file := range files {
		if err = ctx.Err(); err != nil {
			return err
		}

		name := path.Join(dir, installName(file))
		if err = addFile(archive, file, name); err != nil {
			return err
		}

		buildsys.Log(ctx).Debug().Msgf("added %s as %s", file, name)
	}

	if err = archive.Close(); err != nil {
		return eris.Wrap(err, "failed to finish tar stream")
	}

	if err = compressed.Close(); err != nil {
		return eris.Wrap(err, "failed to finish compressed stream")
	}

	if err = tmp.Close(); err != nil {
		return eris.Wrapf(err, "failed to write %s", out)
	}

	if err = os.Rename(tmpName, out); err != nil {
		return eris.Wrapf(err, "failed to move %s into place", out)
	}

	buildsys.Log(ctx).Info().Msgf("wrote %s", out)
	return nil
}

func addFile(archive *tar.Writer, file, name string) error {
	info, err := os.Stat(file)
	if err != nil {
		return eris.Wrapf(err, "failed to check %s", file)
	}

	if !info.Mode().IsRegular() {
		return eris.Errorf("%s is not a regular file", file)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return eris.Wrapf(err, "failed to build tar header for %s", file)
	}
	header.Name = name

	if err = archive.WriteHeader(header); err != nil {
		return eris.Wrapf(err, "failed to write tar header for %s", file)
	}

	handle, err := os.Open(file)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", file)
	}
	defer handle.Close()

	if _, err = io.Copy(archive, handle); err != nil {
		return eris.Wrapf(err, "failed to archive %s", file)
	}
	return nil
}
