package installer_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/installer"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/runner"
	"github.com/slok/devdroid/internal/step"
)

// fakeRunner records the requests. Commands are never executed, in-process work is.
type fakeRunner struct {
	reqs []runner.Request
	errs map[string]error
}

func (f *fakeRunner) Run(ctx context.Context, req runner.Request) (int, error) {
	f.reqs = append(f.reqs, req)

	cmd, ok := req.Work.(*runner.CommandWork)
	if !ok {
		if err := req.Work.Run(ctx, io.Discard); err != nil {
			return 1, err
		}
		return 0, nil
	}

	if err := f.errs[cmd.String()]; err != nil {
		return 1, err
	}
	return 0, nil
}

func (f *fakeRunner) commands() []string {
	var res []string
	for _, r := range f.reqs {
		if cmd, ok := r.Work.(*runner.CommandWork); ok {
			res = append(res, cmd.String())
		}
	}
	return res
}

type statusRecorder struct {
	status model.StepStatus
}

func (s *statusRecorder) SetStatus(status model.StepStatus) { s.status = status }

type testEnv struct {
	home   string
	prefix string
	data   string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	return testEnv{
		home:   filepath.Join(dir, "home"),
		prefix: filepath.Join(dir, "usr"),
		data:   filepath.Join(dir, "home", ".devdroid"),
	}
}

func (e testEnv) installDistro(t *testing.T, distro string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(conventions.DistroRootfs(e.prefix, distro), 0o755))
}

func baseConfig() model.InstallConfig {
	return model.InstallConfig{
		Distro:     model.DistroDebian,
		SSHPort:    model.DefaultSSHPort,
		VNCDisplay: model.DefaultVNCDisplay,
	}
}

func runWork(t *testing.T, inst *installer.Installer, workID string) (model.StepStatus, error) {
	t.Helper()

	w, ok := inst.Catalog()[workID]
	require.True(t, ok, "work %q should be in the catalog", workID)

	ctx := step.ContextWithStep(context.Background(), model.Step{Index: 3, WorkID: workID, EstimatedSeconds: 120})
	rec := &statusRecorder{}
	err := w.Run(ctx, rec)
	return rec.status, err
}

func TestDefinitions(t *testing.T) {
	tests := map[string]struct {
		overrides   map[string]int
		expEstimate map[string]int
	}{
		"Without overrides the default estimates should be used.": {
			expEstimate: map[string]int{installer.WorkPkgUpdate: 60, installer.WorkDistroPackages: 900},
		},

		"Overrides should replace the estimate of their step only.": {
			overrides:   map[string]int{installer.WorkPkgUpgrade: 400, "unknown": 10},
			expEstimate: map[string]int{installer.WorkPkgUpgrade: 400, installer.WorkPkgUpdate: 60},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			defs := installer.Definitions(test.overrides)

			var ids []string
			for _, d := range defs {
				ids = append(ids, d.WorkID)
				if exp, ok := test.expEstimate[d.WorkID]; ok {
					assert.Equal(exp, d.EstimatedSeconds, d.WorkID)
				}
			}
			assert.Equal([]string{
				"pkg_update", "pkg_upgrade", "pkg_base", "storage_access", "apk_companions",
				"distro_install", "distro_packages", "ssh_setup", "desktop_setup", "shortcuts",
			}, ids)
		})
	}
}

func TestEstimateOverridesFromEnv(t *testing.T) {
	tests := map[string]struct {
		env map[string]string
		exp map[string]int
	}{
		"Without variables there should be no overrides.": {
			exp: map[string]int{},
		},

		"Valid estimates should be used for their step.": {
			env: map[string]string{"DEVDROID_ESTIMATE_PKG_UPDATE": "120", "DEVDROID_ESTIMATE_SSH_SETUP": " 45 "},
			exp: map[string]int{installer.WorkPkgUpdate: 120, installer.WorkSSHSetup: 45},
		},

		"Malformed or out of range estimates should use the default estimate.": {
			env: map[string]string{
				"DEVDROID_ESTIMATE_PKG_UPGRADE": "10; rm -rf /",
				"DEVDROID_ESTIMATE_PKG_BASE":    "99999",
				"DEVDROID_ESTIMATE_SHORTCUTS":   "",
			},
			exp: map[string]int{
				installer.WorkPkgUpgrade: runner.DefaultEstimate,
				installer.WorkPkgBase:    runner.DefaultEstimate,
				installer.WorkShortcuts:  runner.DefaultEstimate,
			},
		},

		"Unknown work IDs should be ignored.": {
			env: map[string]string{"DEVDROID_ESTIMATE_UNKNOWN": "100"},
			exp: map[string]int{},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			lookup := func(k string) (string, bool) {
				v, ok := test.env[k]
				return v, ok
			}

			got := installer.EstimateOverridesFromEnv(lookup)
			assert.Equal(t, test.exp, got)
		})
	}
}

func TestDefinitionsAreRegistrable(t *testing.T) {
	inst, err := installer.New(installer.InstallerConfig{
		Runner:  &fakeRunner{},
		Install: baseConfig(),
		DataDir: t.TempDir(),
		HomeDir: t.TempDir(),
	})
	require.NoError(t, err)

	reg, err := step.NewRegistry(step.RegistryConfig{Catalog: inst.Catalog()})
	require.NoError(t, err)
	require.NoError(t, reg.Init(installer.Definitions(nil)))

	for _, e := range reg.Entries() {
		assert.NotNil(t, e.Work, e.WorkID)
	}
	assert.Equal(t, step.Totals{Steps: 10, EstimatedSeconds: 2830}, reg.Totals())
}

func TestNewInstaller(t *testing.T) {
	tests := map[string]struct {
		cfg    installer.InstallerConfig
		expErr bool
	}{
		"A valid config should not fail.": {
			cfg: installer.InstallerConfig{Runner: &fakeRunner{}, Install: baseConfig(), DataDir: "/tmp/x", HomeDir: "/tmp/y"},
		},

		"A missing runner should fail.": {
			cfg:    installer.InstallerConfig{Install: baseConfig(), DataDir: "/tmp/x"},
			expErr: true,
		},

		"A missing data dir should fail.": {
			cfg:    installer.InstallerConfig{Runner: &fakeRunner{}, Install: baseConfig()},
			expErr: true,
		},

		"An invalid install config should fail.": {
			cfg:    installer.InstallerConfig{Runner: &fakeRunner{}, Install: model.InstallConfig{Distro: "gentoo"}, DataDir: "/tmp/x"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := installer.New(test.cfg)
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInstallerWork(t *testing.T) {
	tests := map[string]struct {
		workID      string
		cfg         func(c model.InstallConfig) model.InstallConfig
		prepare     func(t *testing.T, e testEnv)
		runErrs     map[string]error
		expCommands []string
		expStatus   model.StepStatus
		expErr      bool
		expErrIs    error
	}{
		"Updating the package index should run pkg update.": {
			workID:      installer.WorkPkgUpdate,
			expCommands: []string{"pkg update -y"},
		},

		"Upgrading packages should keep the modified config files.": {
			workID:      installer.WorkPkgUpgrade,
			expCommands: []string{"pkg upgrade -y -o Dpkg::Options::=--force-confold"},
		},

		"Base packages should include the extra packages.": {
			workID: installer.WorkPkgBase,
			cfg: func(c model.InstallConfig) model.InstallConfig {
				c.ExtraPackages = []string{"neovim", "python"}
				return c
			},
			expCommands: []string{"pkg install -y proot-distro openssh curl wget git termux-api neovim python"},
		},

		"A failing command should fail the work.": {
			workID:      installer.WorkPkgUpdate,
			runErrs:     map[string]error{"pkg update -y": errors.New("exit status 100")},
			expCommands: []string{"pkg update -y"},
			expErr:      true,
		},

		"Storage access already granted should be skipped.": {
			workID: installer.WorkStorageAccess,
			prepare: func(t *testing.T, e testEnv) {
				require.NoError(t, os.MkdirAll(filepath.Join(e.home, "storage"), 0o755))
			},
			expStatus: model.StepStatusSkipped,
		},

		"Storage access in a non interactive session should be skipped.": {
			workID: installer.WorkStorageAccess,
			cfg: func(c model.InstallConfig) model.InstallConfig {
				c.NonInteractive = true
				return c
			},
			expErr:   true,
			expErrIs: step.ErrSkipped,
		},

		"Storage access should ask for the permission.": {
			workID:      installer.WorkStorageAccess,
			expCommands: []string{"termux-setup-storage"},
		},

		"Companion apps without apps should be skipped.": {
			workID:    installer.WorkAPKCompanions,
			expStatus: model.StepStatusSkipped,
		},

		"An installed distro should be skipped.": {
			workID:    installer.WorkDistroInstall,
			prepare:   func(t *testing.T, e testEnv) { e.installDistro(t, model.DistroDebian) },
			expStatus: model.StepStatusSkipped,
		},

		"A missing distro should be installed.": {
			workID: installer.WorkDistroInstall,
			cfg: func(c model.InstallConfig) model.InstallConfig {
				c.Distro = model.DistroArch
				return c
			},
			expCommands: []string{"proot-distro install archlinux"},
		},

		"Distro packages without the distro should fail.": {
			workID: installer.WorkDistroPackages,
			expErr: true,
		},

		"Distro packages should use the default packages with the distro package manager.": {
			workID: installer.WorkDistroPackages,
			cfg: func(c model.InstallConfig) model.InstallConfig {
				c.Distro = model.DistroUbuntu
				return c
			},
			prepare: func(t *testing.T, e testEnv) { e.installDistro(t, model.DistroUbuntu) },
			expCommands: []string{
				"proot-distro login ubuntu -- /bin/sh -c apt-get update && DEBIAN_FRONTEND=noninteractive apt-get install -y git curl vim sudo",
			},
		},

		"Distro packages should use the configured packages.": {
			workID: installer.WorkDistroPackages,
			cfg: func(c model.InstallConfig) model.InstallConfig {
				c.Distro = model.DistroAlpine
				c.DistroPackages = []string{"go", "make"}
				return c
			},
			prepare:     func(t *testing.T, e testEnv) { e.installDistro(t, model.DistroAlpine) },
			expCommands: []string{"proot-distro login alpine -- /bin/sh -c apk update && apk add go make"},
		},

		"The desktop should be installed with the VNC server.": {
			workID:  installer.WorkDesktopSetup,
			prepare: func(t *testing.T, e testEnv) { e.installDistro(t, model.DistroDebian) },
			expCommands: []string{
				"proot-distro login debian -- /bin/sh -c apt-get update && DEBIAN_FRONTEND=noninteractive apt-get install -y xfce4 xfce4-terminal tigervnc-standalone-server dbus-x11",
			},
		},

		"A configured desktop should be skipped.": {
			workID: installer.WorkDesktopSetup,
			prepare: func(t *testing.T, e testEnv) {
				rootfs := conventions.DistroRootfs(e.prefix, model.DistroDebian)
				require.NoError(t, os.MkdirAll(filepath.Join(rootfs, "root", ".vnc"), 0o755))
				require.NoError(t, os.MkdirAll(filepath.Join(rootfs, "usr", "bin"), 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(rootfs, "root", ".vnc", "xstartup"), []byte("x"), 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(rootfs, "usr", "bin", "vncserver"), []byte("x"), 0o755))
			},
			expStatus: model.StepStatusSkipped,
		},

		"A disabled step should self report skipped without running anything.": {
			workID: installer.WorkPkgUpgrade,
			cfg: func(c model.InstallConfig) model.InstallConfig {
				c.DisabledSteps = []string{installer.WorkPkgUpgrade}
				return c
			},
			expStatus: model.StepStatusSkipped,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			e := newTestEnv(t)
			if test.prepare != nil {
				test.prepare(t, e)
			}

			cfg := baseConfig()
			if test.cfg != nil {
				cfg = test.cfg(cfg)
			}

			fr := &fakeRunner{errs: test.runErrs}
			inst, err := installer.New(installer.InstallerConfig{
				Runner:      fr,
				Install:     cfg,
				DataDir:     e.data,
				HomeDir:     e.home,
				Prefix:      e.prefix,
				PortChecker: func(context.Context, string) bool { return false },
			})
			require.NoError(err)

			status, err := runWork(t, inst, test.workID)
			if test.expErr {
				assert.Error(err)
				if test.expErrIs != nil {
					assert.ErrorIs(err, test.expErrIs)
				}
			} else {
				assert.NoError(err)
			}

			assert.Equal(test.expCommands, fr.commands())
			assert.Equal(test.expStatus, status)
		})
	}
}

func TestInstallerRunRequests(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	e := newTestEnv(t)
	fr := &fakeRunner{}
	inst, err := installer.New(installer.InstallerConfig{Runner: fr, Install: baseConfig(), DataDir: e.data, HomeDir: e.home})
	require.NoError(err)

	_, err = runWork(t, inst, installer.WorkPkgUpdate)
	require.NoError(err)

	require.Len(fr.reqs, 1)
	req := fr.reqs[0]
	assert.Equal("Updating package index", req.Label)
	assert.Equal(120, req.EstimatedSeconds)
	require.NotNil(req.StepIndex)
	assert.Equal(3, *req.StepIndex)
}

func TestInstallerDesktopWritesVNCStartup(t *testing.T) {
	e := newTestEnv(t)
	e.installDistro(t, model.DistroDebian)

	inst, err := installer.New(installer.InstallerConfig{Runner: &fakeRunner{}, Install: baseConfig(), DataDir: e.data, HomeDir: e.home, Prefix: e.prefix})
	require.NoError(t, err)

	_, err = runWork(t, inst, installer.WorkDesktopSetup)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(conventions.DistroRootfs(e.prefix, model.DistroDebian), "root", ".vnc", "xstartup"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "startxfce4")
}

func TestInstallerShortcuts(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	e := newTestEnv(t)
	cfg := baseConfig()
	cfg.VNCDisplay = 2
	inst, err := installer.New(installer.InstallerConfig{Runner: &fakeRunner{}, Install: cfg, DataDir: e.data, HomeDir: e.home, Prefix: e.prefix})
	require.NoError(err)

	// First run writes them.
	status, err := runWork(t, inst, installer.WorkShortcuts)
	require.NoError(err)
	assert.Equal(model.StepStatus(""), status)

	data, err := os.ReadFile(filepath.Join(e.home, ".shortcuts", "devdroid-vnc-start"))
	require.NoError(err)
	assert.Equal("#!"+filepath.Join(e.prefix, "bin", "sh")+"\nproot-distro login debian -- vncserver :2 -localhost no\n", string(data))

	info, err := os.Stat(filepath.Join(e.home, ".shortcuts", "devdroid-shell"))
	require.NoError(err)
	assert.Equal(os.FileMode(0o755), info.Mode().Perm())

	// Second run has nothing to do.
	status, err = runWork(t, inst, installer.WorkShortcuts)
	require.NoError(err)
	assert.Equal(model.StepStatusSkipped, status)
}

func TestInstallerSSHSetup(t *testing.T) {
	tests := map[string]struct {
		portOpen    bool
		loginErr    error
		runs        int
		expCommands []string
		expStatuses []model.StepStatus
		expErr      bool
	}{
		"A running SSH server should only get the key authorized once.": {
			portOpen:    true,
			runs:        2,
			expStatuses: []model.StepStatus{"", model.StepStatusSkipped},
		},

		"A stopped SSH server should be started on the configured port.": {
			portOpen:    false,
			runs:        1,
			expCommands: []string{"sshd -p 8022"},
			expStatuses: []model.StepStatus{""},
		},

		"A failed login with the generated key should fail the step.": {
			portOpen:    false,
			loginErr:    errors.New("ssh: unable to authenticate"),
			runs:        1,
			expCommands: []string{"sshd -p 8022"},
			expErr:      true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			e := newTestEnv(t)
			fr := &fakeRunner{}
			var logins []int
			var loginKey []byte
			inst, err := installer.New(installer.InstallerConfig{
				Runner:      fr,
				Install:     baseConfig(),
				DataDir:     e.data,
				HomeDir:     e.home,
				PortChecker: func(_ context.Context, addr string) bool { return test.portOpen && addr == "127.0.0.1:8022" },
				LoginVerifier: func(_ context.Context, port int, key []byte) error {
					logins = append(logins, port)
					loginKey = key
					return test.loginErr
				},
			})
			require.NoError(err)

			var statuses []model.StepStatus
			for range test.runs {
				status, err := runWork(t, inst, installer.WorkSSHSetup)
				if test.expErr {
					assert.Error(err)
					continue
				}
				require.NoError(err)
				statuses = append(statuses, status)
			}

			assert.Equal(test.expStatuses, statuses)
			assert.Equal(test.expCommands, fr.commands())
			assert.Len(logins, test.runs)
			for _, port := range logins {
				assert.Equal(8022, port)
			}

			priv, err := os.ReadFile(conventions.SSHPrivateKeyPath(e.data))
			require.NoError(err)
			assert.Equal(priv, loginKey)

			pub, err := os.ReadFile(conventions.SSHPublicKeyPath(e.data))
			require.NoError(err)
			authorized, err := os.ReadFile(filepath.Join(e.home, ".ssh", "authorized_keys"))
			require.NoError(err)
			assert.Contains(string(authorized), string(pub))
		})
	}
}

func TestInstallerAPKCompanions(t *testing.T) {
	content := []byte("fake apk content")
	sum := sha256.Sum256(content)
	goodSHA := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/widget.apk" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	tests := map[string]struct {
		app         model.CompanionApp
		preexisting bool
		expStatus   model.StepStatus
		expErr      bool
		expFile     bool
	}{
		"A valid download should be stored.": {
			app:     model.CompanionApp{Name: "termux-widget", URL: srv.URL + "/widget.apk", SHA256: goodSHA},
			expFile: true,
		},

		"A download without checksum should be stored.": {
			app:     model.CompanionApp{Name: "termux-widget", URL: srv.URL + "/widget.apk"},
			expFile: true,
		},

		"A checksum mismatch should fail and leave nothing behind.": {
			app:    model.CompanionApp{Name: "termux-widget", URL: srv.URL + "/widget.apk", SHA256: "deadbeef"},
			expErr: true,
		},

		"A missing remote file should fail.": {
			app:    model.CompanionApp{Name: "termux-widget", URL: srv.URL + "/missing.apk"},
			expErr: true,
		},

		"An already downloaded app should be skipped.": {
			app:         model.CompanionApp{Name: "termux-widget", URL: srv.URL + "/missing.apk", SHA256: goodSHA},
			preexisting: true,
			expStatus:   model.StepStatusSkipped,
			expFile:     true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			e := newTestEnv(t)
			dst := conventions.APKPath(e.data, test.app.Name)
			if test.preexisting {
				require.NoError(os.MkdirAll(filepath.Dir(dst), 0o755))
				require.NoError(os.WriteFile(dst, content, 0o644))
			}

			cfg := baseConfig()
			cfg.CompanionApps = []model.CompanionApp{test.app}
			inst, err := installer.New(installer.InstallerConfig{Runner: &fakeRunner{}, Install: cfg, DataDir: e.data, HomeDir: e.home, HTTPClient: srv.Client()})
			require.NoError(err)

			status, err := runWork(t, inst, installer.WorkAPKCompanions)
			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}
			assert.Equal(test.expStatus, status)

			if test.expFile {
				got, err := os.ReadFile(dst)
				require.NoError(err)
				assert.Equal(content, got)
			} else {
				assert.NoFileExists(dst)
			}
			assert.NoFileExists(dst + ".part")
		})
	}
}

func TestProgressWriter(t *testing.T) {
	tests := map[string]struct {
		total     int64
		writes    []string
		expStatus string
	}{
		"A known size should show the percentage once per change.": {
			total:     4,
			writes:    []string{"ab", "cd"},
			expStatus: "\r[###############...............]  50% 2 B / 4 B\r[##############################] 100% 4 B / 4 B\r[##############################] 100% 4 B / 4 B\n",
		},

		"An unknown size should show the downloaded bytes.": {
			total:     -1,
			writes:    []string{"abc"},
			expStatus: "\r3 B downloaded\r3 B downloaded\n",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			var dst, status bytes.Buffer
			pw := installer.NewProgressWriter(&dst, &status, test.total)
			for _, w := range test.writes {
				_, err := pw.Write([]byte(w))
				assert.NoError(err)
			}
			pw.Finish()

			assert.Equal(test.expStatus, status.String())
			assert.Equal(int64(dst.Len()), pw.Written())
		})
	}
}

func TestCheckHost(t *testing.T) {
	tests := map[string]struct {
		prefix string
		expErr bool
	}{
		"A Termux prefix should be supported.": {
			prefix: "/data/data/com.termux/files/usr",
		},

		"An empty prefix should not be supported.": {
			prefix: "",
			expErr: true,
		},

		"A regular Linux prefix should not be supported.": {
			prefix: "/usr",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := installer.CheckHost(test.prefix)
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrHostNotSupported)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
