package vault

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
)

// Reveal opens the containing folder in the host file manager, selecting the
// file where the platform supports it. Best effort: the spawn is detached and
// success only means the command started.
func (v *Vault) Reveal(abs string) error {
	if !fileExists(abs) {
		return fmt.Errorf("%w: %s", evidence.ErrNotFound, abs)
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("explorer.exe", "/select,", abs)
	case "darwin":
		cmd = exec.Command("open", "-R", abs)
	default:
		// Selection support varies by desktop environment; open the folder.
		cmd = exec.Command("xdg-open", filepath.Dir(abs))
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: reveal: %v", evidence.ErrStorageIO, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
