package publish

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/slinkylib/slinky/pkg/buildsys"
)

// Register makes install, uninstall and package available to tasks:
//
//	install <prefix> <file> <subdir>    copies file into prefix/subdir
//	uninstall <prefix>                  removes everything this project installed below prefix
//
// The installed files are recorded in the manifest inside the task's state directory.
//	package <archive> <dir> <files...>  writes a .tar.xz or .tar.br archive
func Register() {
	buildsys.RegisterAction("install", installAction)
	buildsys.RegisterAction("uninstall", uninstallAction)
	buildsys.RegisterAction("package", packageAction)
}

func projectPath(env buildsys.ActionEnv, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(env.ProjectRoot, path)
}

func openProjectManifest(env buildsys.ActionEnv, prefix string) (*Manifest, error) {
	absPrefix, err := filepath.Abs(prefix)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", prefix)
	}

	stateDir := env.StateDir
	if stateDir == "" {
		stateDir = filepath.Join("build", ".slinky")
	}
	return OpenManifest(projectPath(env, stateDir), absPrefix)
}

func installAction(ctx context.Context, env buildsys.ActionEnv, args []string) error {
	if len(args) != 3 {
		return eris.Errorf("install expects a prefix, a file and a sub directory but got %d arguments", len(args))
	}

	prefix, err := ExpandPrefix(args[0])
	if err != nil {
		return err
	}

	opts := InstallOptions{
		DryRun:       env.DryRun,
		ShowProgress: true,
	}

	if !env.DryRun {
		opts.Manifest, err = openProjectManifest(env, prefix)
		if err != nil {
			return err
		}
		defer opts.Manifest.Close()
	}

	_, err = Install(ctx, projectPath(env, args[1]), filepath.Join(prefix, args[2]), opts)
	return err
}

func uninstallAction(ctx context.Context, env buildsys.ActionEnv, args []string) error {
	if len(args) != 1 {
		return eris.Errorf("uninstall expects a prefix but got %d arguments", len(args))
	}

	prefix, err := ExpandPrefix(args[0])
	if err != nil {
		return err
	}

	m, err := openProjectManifest(env, prefix)
	if err != nil {
		return err
	}
	defer m.Close()

	removed, err := Uninstall(ctx, m, env.DryRun)
	if err != nil {
		return err
	}

	if !env.DryRun && len(removed) == 0 {
		buildsys.Log(ctx).Info().Msg("nothing to uninstall")
	}
	return nil
}

func packageAction(ctx context.Context, env buildsys.ActionEnv, args []string) error {
	if len(args) < 3 {
		return eris.Errorf("package expects an archive, a directory name and at least one file but got %d arguments", len(args))
	}

	out := projectPath(env, args[0])
	if env.DryRun {
		buildsys.Log(ctx).Info().Msgf("would write %s", out)
		return nil
	}

	files := make([]string, len(args)-2)
	for idx, file := range args[2:] {
		files[idx] = projectPath(env, file)
	}

	return Archive(ctx, out, args[1], files...)
}
