package shell

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/magicbot/signal-rpm-packager/internal/errdefs"
	"github.com/magicbot/signal-rpm-packager/internal/utils/logger"
)

// getShell returns the preferred shell, falling back to /bin/sh if bash is not available
func getShell() string {
	shells := []string{"/bin/bash", "/usr/bin/bash", "/bin/sh"}
	for _, shell := range shells {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh" // fallback
}

// IsCommandExist checks if a command exists on the host
func IsCommandExist(cmd string) bool {
	shell := getShell()
	output, _ := exec.Command(shell, "-c", "command -v "+cmd).Output()
	return len(bytes.TrimSpace(output)) > 0
}

// RequireCommands verifies every listed command is installed before any
// stage runs, so a missing tool surfaces as a clear preflight error
// instead of a confusing downstream failure.
func RequireCommands(cmds ...string) error {
	for _, cmd := range cmds {
		if !IsCommandExist(cmd) {
			return fmt.Errorf("%w: %s", errdefs.ErrMissingRequiredTool, cmd)
		}
	}
	return nil
}

// getFullCmdStr prepares a command string with necessary prefixes
func getFullCmdStr(cmdStr string, sudo bool, envVal []string) string {
	log := logger.Logger()
	envValStr := ""
	for _, env := range envVal {
		envValStr += env + " "
	}

	if sudo {
		log.Debugf("Exec: [sudo " + cmdStr + "]")
		return "sudo " + envValStr + cmdStr
	}
	log.Debugf("Exec: [" + cmdStr + "]")
	return envValStr + cmdStr
}

// ExecCmd executes a command and returns its combined output
func ExecCmd(cmdStr string, sudo bool, envVal []string) (string, error) {
	log := logger.Logger()
	fullCmdStr := getFullCmdStr(cmdStr, sudo, envVal)

	shell := getShell()
	cmd := exec.Command(shell, "-c", fullCmdStr)
	output, err := cmd.CombinedOutput()
	outputStr := string(output)

	if err != nil {
		if outputStr != "" {
			log.Infof(outputStr)
		}
		return outputStr, fmt.Errorf("failed to exec %s: %w", fullCmdStr, err)
	}
	if outputStr != "" {
		log.Debugf(outputStr)
	}
	return outputStr, nil
}

// ExecCmdWithStream executes a command and streams its output through
// the logger line by line, for long-running tools such as rpmbuild.
func ExecCmdWithStream(cmdStr string, sudo bool, envVal []string) (string, error) {
	var outputStr string
	log := logger.Logger()

	fullCmdStr := getFullCmdStr(cmdStr, sudo, envVal)

	shell := getShell()
	cmd := exec.Command(shell, "-c", fullCmdStr)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stdout pipe for command %s: %w", fullCmdStr, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stderr pipe for command %s: %w", fullCmdStr, err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start command %s: %w", fullCmdStr, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				outputStr += str + "\n"
				log.Infof(str)
			}
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				log.Infof(str)
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return outputStr, fmt.Errorf("failed to wait for command %s: %w", fullCmdStr, err)
	}

	return outputStr, nil
}

// Quote wraps an argument in single quotes for safe interpolation into
// a shell command line.
func Quote(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
