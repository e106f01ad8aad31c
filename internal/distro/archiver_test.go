package distro_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/distro"
	"github.com/slok/devdroid/internal/runner"
)

// fakeRunner writes the archive a backup command would produce.
type fakeRunner struct {
	cmds []string
	err  error
}

func (f *fakeRunner) Run(_ context.Context, req runner.Request) (int, error) {
	cmd := req.Work.(*runner.CommandWork)
	f.cmds = append(f.cmds, cmd.String())
	if f.err != nil {
		return 1, f.err
	}
	if cmd.Args[0] == "backup" {
		if err := os.WriteFile(cmd.Args[2], []byte("archive"), 0o644); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

func TestArchiverBackup(t *testing.T) {
	tests := map[string]struct {
		runErr  error
		expSize int64
		expErr  bool
	}{
		"A successful backup should return the archive size.": {
			expSize: 7,
		},

		"A failed backup should fail.": {
			runErr: errors.New("exit status 1"),
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			dst := filepath.Join(t.TempDir(), "snapshots", "01.tar.gz")
			fr := &fakeRunner{err: test.runErr}
			a, err := distro.NewArchiver(distro.ArchiverConfig{Runner: fr})
			require.NoError(err)

			size, err := a.Backup(context.TODO(), "debian", dst)
			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(test.expSize, size)
			assert.Equal([]string{"proot-distro backup --output " + dst + " debian"}, fr.cmds)
		})
	}
}

func TestArchiverRestore(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "01.tar.gz")
	fr := &fakeRunner{}
	a, err := distro.NewArchiver(distro.ArchiverConfig{Runner: fr})
	require.NoError(err)

	// Missing archives should not reach proot-distro.
	assert.Error(a.Restore(context.TODO(), src))
	assert.Empty(fr.cmds)

	require.NoError(os.WriteFile(src, []byte("archive"), 0o644))
	assert.NoError(a.Restore(context.TODO(), src))
	assert.Equal([]string{"proot-distro restore " + src}, fr.cmds)
}

func TestArchiverInstalled(t *testing.T) {
	prefix := t.TempDir()
	a, err := distro.NewArchiver(distro.ArchiverConfig{Runner: &fakeRunner{}, Prefix: prefix})
	require.NoError(t, err)

	assert.False(t, a.Installed("debian"))
	require.NoError(t, os.MkdirAll(conventions.DistroRootfs(prefix, "debian"), 0o755))
	assert.True(t, a.Installed("debian"))
}
