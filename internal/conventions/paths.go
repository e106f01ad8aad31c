package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default devdroid data directory name (relative to home).
	DefaultDataDir = ".devdroid"

	// EventLogFile is the append-only JSON lines event log.
	EventLogFile = "events.jsonl"
	// CompletionFile is the snapshot of the last run outcome.
	CompletionFile = "completion.json"
	// SnapshotIndexFile holds the metadata of the environment snapshots.
	SnapshotIndexFile = "snapshots.json"
	// SnapshotsDir is the subdirectory for environment snapshot archives.
	SnapshotsDir = "snapshots"
	// SSHDir is the subdirectory for the generated SSH keys.
	SSHDir = "ssh"
	// APKsDir is the subdirectory for downloaded companion apps.
	APKsDir = "apks"

	// SSHPrivateKeyFile is the filename for the generated SSH private key.
	SSHPrivateKeyFile = "id_ed25519"
	// SSHPublicKeyFile is the filename for the generated SSH public key.
	SSHPublicKeyFile = "id_ed25519.pub"

	// TermuxPrefixMarker is present in the PREFIX of every Termux installation.
	TermuxPrefixMarker = "com.termux"
	// DefaultTermuxPrefix is the PREFIX of a standard Termux installation.
	DefaultTermuxPrefix = "/data/data/com.termux/files/usr"
	// StorageLinkDir is created in the home by termux-setup-storage (relative to home).
	StorageLinkDir = "storage"
	// ShortcutsDir is the Termux:Widget shortcuts directory (relative to home).
	ShortcutsDir = ".shortcuts"
	// ProotDistroRootfsDir is where proot-distro keeps the installed distributions (relative to PREFIX).
	ProotDistroRootfsDir = "var/lib/proot-distro/installed-rootfs"
)

// EventLogPath returns the event log path inside the data dir.
func EventLogPath(dataDir string) string { return filepath.Join(dataDir, EventLogFile) }

// CompletionPath returns the completion snapshot path inside the data dir.
func CompletionPath(dataDir string) string { return filepath.Join(dataDir, CompletionFile) }

// SnapshotIndexPath returns the snapshot index path inside the data dir.
func SnapshotIndexPath(dataDir string) string { return filepath.Join(dataDir, SnapshotIndexFile) }

// SnapshotArchivePath returns the path of a snapshot archive.
func SnapshotArchivePath(dataDir, snapshotID string) string {
	return filepath.Join(dataDir, SnapshotsDir, snapshotID+".tar.gz")
}

// SSHPrivateKeyPath returns the path to the generated SSH private key.
func SSHPrivateKeyPath(dataDir string) string {
	return filepath.Join(dataDir, SSHDir, SSHPrivateKeyFile)
}

// SSHPublicKeyPath returns the path to the generated SSH public key.
func SSHPublicKeyPath(dataDir string) string {
	return filepath.Join(dataDir, SSHDir, SSHPublicKeyFile)
}

// APKPath returns the local path of a downloaded companion app.
func APKPath(dataDir, appName string) string {
	return filepath.Join(dataDir, APKsDir, appName+".apk")
}

// DistroRootfs returns the rootfs directory of an installed proot-distro distribution.
func DistroRootfs(prefix, distro string) string {
	return filepath.Join(prefix, ProotDistroRootfsDir, distro)
}
