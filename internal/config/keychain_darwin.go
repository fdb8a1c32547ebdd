//go:build darwin

package config

import "os/exec"

// keychainExec reads one murmur secret stored as a generic password in the
// macOS keychain under the "murmur" service.
func keychainExec(service, account string) ([]byte, error) {
	out, err := exec.Command(
		"security", "find-generic-password",
		"-s", service, "-a", account, "-w",
	).Output()
	if err != nil {
		return nil, err
	}
	return out, nil
}
