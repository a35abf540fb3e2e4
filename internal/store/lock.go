package store

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const lockDirName = ".download.lock"

// FolderLock guards one video folder against a second concurrent download.
// The lock is a directory, so acquisition is a single atomic mkdir.
type FolderLock struct {
	dir string
}

// lockOwner is written inside the lock directory so a blocked invocation
// can report who holds the folder, and so a crashed owner can be detected.
type lockOwner struct {
	PID      int    `json:"pid"`
	BVID     string `json:"bvid,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Started  string `json:"started"`
}

// AcquireFolderLock claims dir for the download of bvid. A lock left behind
// by a process that no longer exists is treated as stale and taken over.
func AcquireFolderLock(dir, bvid string) (FolderLock, error) {
	if dir == "" {
		return FolderLock{}, fmt.Errorf("folder lock: empty directory")
	}
	lockDir := filepath.Join(dir, lockDirName)

	err := os.Mkdir(lockDir, 0o755)
	if os.IsExist(err) {
		owner, readErr := readLockOwner(lockDir)
		if readErr == nil && processAlive(owner.PID) {
			return FolderLock{}, fmt.Errorf(
				"%s is being downloaded by pid %d on %s since %s",
				dir, owner.PID, owner.Hostname, owner.Started,
			)
		}
		// Stale: the owner is gone or its record is unreadable.
		if rmErr := os.RemoveAll(lockDir); rmErr != nil {
			return FolderLock{}, fmt.Errorf("remove stale lock in %s: %w", dir, rmErr)
		}
		err = os.Mkdir(lockDir, 0o755)
	}
	if err != nil {
		return FolderLock{}, fmt.Errorf("lock %s: %w", dir, err)
	}

	host, _ := os.Hostname()
	owner := lockOwner{
		PID:      os.Getpid(),
		BVID:     bvid,
		Hostname: host,
		Started:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := WriteJSON(filepath.Join(lockDir, "owner.json"), owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return FolderLock{}, fmt.Errorf("record lock owner in %s: %w", dir, err)
	}
	return FolderLock{dir: lockDir}, nil
}

func (l FolderLock) Release() error {
	if l.dir == "" {
		return nil
	}
	if err := os.RemoveAll(l.dir); err != nil {
		return fmt.Errorf("unlock %s: %w", l.dir, err)
	}
	return nil
}

func readLockOwner(lockDir string) (lockOwner, error) {
	var owner lockOwner
	err := ReadJSON(filepath.Join(lockDir, "owner.json"), &owner)
	if err == nil && owner.PID <= 0 {
		err = fmt.Errorf("owner record has no pid")
	}
	return owner, err
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
