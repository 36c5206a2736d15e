// Package exporter downloads and updates the DiscordChatExporter CLI.
package exporter

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/starshine-sys/archiver/common"
	"github.com/starshine-sys/archiver/config"
	"go.uber.org/zap"
)

const (
	// LatestReleaseURL is the GitHub API endpoint for the latest release.
	LatestReleaseURL = "https://api.github.com/repos/Tyrrrz/DiscordChatExporter/releases/latest"
	// DownloadURL is where release assets are downloaded from.
	DownloadURL = "https://github.com/Tyrrrz/DiscordChatExporter/releases/latest/download/"

	// ExecutableName is the name of the CLI inside the release archive.
	ExecutableName = "DiscordChatExporter.Cli"
)

// ErrUnsupportedPlatform is returned if there's no release for the current OS and architecture.
const ErrUnsupportedPlatform = errors.Sentinel("unsupported operating system or architecture")

// Installer manages an exporter install in Dir.
type Installer struct {
	Dir string

	Client      *http.Client
	LatestURL   string
	DownloadURL string

	GOOS, GOARCH string

	Log *zap.SugaredLogger
}

// New returns an Installer for dir, targeting the current platform.
func New(dir string) *Installer {
	return &Installer{
		Dir:         dir,
		Client:      &http.Client{Timeout: 5 * time.Minute},
		LatestURL:   LatestReleaseURL,
		DownloadURL: DownloadURL,
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
		Log:         common.Log.Named("exporter"),
	}
}

// AssetName returns the release asset name for the given platform.
func AssetName(goos, goarch string) (string, error) {
	var osName, arch string

	switch goos {
	case "windows":
		osName = "win"
	case "darwin":
		osName = "osx"
	case "linux":
		osName = "linux"
	default:
		return "", errors.WithDetails(ErrUnsupportedPlatform, "os", goos)
	}

	switch goarch {
	case "amd64":
		arch = "x64"
	case "386":
		arch = "x86"
	case "arm":
		arch = "arm"
	case "arm64":
		arch = "arm64"
	default:
		return "", errors.WithDetails(ErrUnsupportedPlatform, "arch", goarch)
	}

	if arch == "x86" && osName != "win" {
		return "", errors.WithDetails(ErrUnsupportedPlatform, "os", goos, "arch", goarch)
	}

	return "DiscordChatExporter.Cli." + osName + "-" + arch + ".zip", nil
}

// NormalizeTag turns a release tag into the format the CLI prints for --version.
// "2.43" becomes "v2.43.0".
func NormalizeTag(tag string) string {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "v")
	if strings.Count(tag, ".") == 1 {
		tag += ".0"
	}
	return "v" + tag
}

// Executable returns the path to the installed CLI.
func (i *Installer) Executable() string {
	name := ExecutableName
	if i.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(i.Dir, name)
}

// InstalledVersion returns the version of the installed CLI, or an empty string if it isn't installed.
func (i *Installer) InstalledVersion(ctx context.Context) (string, error) {
	_, err := os.Stat(i.Executable())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "checking executable")
	}

	out, err := exec.CommandContext(ctx, i.Executable(), "--version").Output()
	if err != nil {
		return "", errors.Wrap(err, "running exporter --version")
	}
	return strings.TrimSpace(string(out)), nil
}

type release struct {
	TagName string `json:"tag_name"`
}

// LatestVersion returns the normalized tag of the latest release.
func (i *Installer) LatestVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.LatestURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := i.client().Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetching latest release")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("fetching latest release: status %v", resp.Status)
	}

	var r release
	err = json.NewDecoder(resp.Body).Decode(&r)
	if err != nil {
		return "", errors.Wrap(err, "decoding release")
	}

	if r.TagName == "" {
		return "", errors.New("latest release has no tag")
	}

	return NormalizeTag(r.TagName), nil
}

// Install downloads the latest release for the configured platform and extracts it into Dir.
func (i *Installer) Install(ctx context.Context) error {
	asset, err := AssetName(i.GOOS, i.GOARCH)
	if err != nil {
		return err
	}

	err = os.MkdirAll(i.Dir, 0o755)
	if err != nil {
		return errors.Wrap(err, "creating install directory")
	}

	url := strings.TrimSuffix(i.DownloadURL, "/") + "/" + asset
	i.logger().Infof("downloading %v", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}

	resp, err := i.client().Do(req)
	if err != nil {
		return errors.Wrap(err, "downloading release")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("downloading release: status %v", resp.Status)
	}

	zipPath := filepath.Join(i.Dir, "cli.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		return errors.Wrap(err, "creating archive file")
	}
	defer os.Remove(zipPath)

	_, err = io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, "writing archive file")
	}

	err = extract(zipPath, i.Dir)
	if err != nil {
		return errors.Wrap(err, "extracting release")
	}

	err = os.Chmod(i.Executable(), 0o755)
	if err != nil {
		return errors.Wrap(err, "making exporter executable")
	}

	i.logger().Infof("installed exporter to %v", i.Dir)
	return nil
}

// Ensure makes sure the latest exporter is installed, and returns the path to its executable.
// An outdated install is removed and replaced. If the latest version can't be checked, an existing install is kept.
func (i *Installer) Ensure(ctx context.Context) (string, error) {
	installed, err := i.InstalledVersion(ctx)
	if err != nil {
		return "", err
	}

	if installed != "" {
		latest, err := i.LatestVersion(ctx)
		if err != nil {
			i.logger().Warnf("couldn't check for exporter updates, using installed %v: %v", installed, err)
			return i.Executable(), nil
		}

		if installed == latest {
			i.logger().Infof("exporter %v is up to date", installed)
			return i.Executable(), nil
		}

		i.logger().Infof("updating exporter from %v to %v", installed, latest)
		err = os.RemoveAll(i.Dir)
		if err != nil {
			return "", errors.Wrap(err, "removing old exporter")
		}
	}

	err = i.Install(ctx)
	if err != nil {
		return "", err
	}
	return i.Executable(), nil
}

// Path returns the exporter executable to run for c.
// If no path is configured the install in c.Exporter.InstallDir is used, and updated first if auto_update is set.
func Path(ctx context.Context, c config.Config) (string, error) {
	if c.Exporter.Path != "" {
		return c.Exporter.Path, nil
	}

	i := New(c.Exporter.InstallDir)
	if c.Exporter.AutoUpdate {
		return i.Ensure(ctx)
	}

	_, err := os.Stat(i.Executable())
	if err != nil {
		return "", errors.Wrap(err, "exporter is not installed, run `archiver exporter --update` to install it")
	}
	return i.Executable(), nil
}

func (i *Installer) client() *http.Client {
	if i.Client == nil {
		return http.DefaultClient
	}
	return i.Client
}

func (i *Installer) logger() *zap.SugaredLogger {
	if i.Log == nil {
		return zap.S()
	}
	return i.Log
}

// extract unpacks a zip archive into dir, refusing entries that would end up outside of it.
func extract(path, dir string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	root := filepath.Clean(dir)

	for _, zf := range r.File {
		target := filepath.Join(root, zf.Name)
		rel, err := filepath.Rel(root, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			return errors.Errorf("illegal file path in archive: %v", zf.Name)
		}

		if zf.FileInfo().IsDir() {
			err = os.MkdirAll(target, 0o755)
			if err != nil {
				return err
			}
			continue
		}

		err = os.MkdirAll(filepath.Dir(target), 0o755)
		if err != nil {
			return err
		}

		err = extractFile(zf, target)
		if err != nil {
			return errors.Wrapf(err, "extracting %v", zf.Name)
		}
	}
	return nil
}

func extractFile(zf *zip.File, target string) error {
	src, err := zf.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	mode := zf.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return err
}
