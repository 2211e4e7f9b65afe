// Package autostart registers the daemon as a login item.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.padkeys.daemon</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>`

const linuxDesktopEntry = `[Desktop Entry]
Type=Application
Name=PadKeys
Comment=Trackpad typing engine
Exec={{.ExecutablePath}}
Hidden=false
X-GNOME-Autostart-enabled=true
`

// Enable enables auto-start on login.
func Enable() error {
	switch runtime.GOOS {
	case "darwin":
		return writeEntry(macEntryPath, macLaunchAgentPlist)
	case "linux":
		return writeEntry(linuxEntryPath, linuxDesktopEntry)
	default:
		return fmt.Errorf("autostart: unsupported platform %s", runtime.GOOS)
	}
}

// Disable disables auto-start on login.
func Disable() error {
	path, err := entryPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks whether auto-start is registered.
func IsEnabled() bool {
	path, err := entryPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func entryPath() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		return macEntryPath()
	case "linux":
		return linuxEntryPath()
	default:
		return "", fmt.Errorf("autostart: unsupported platform %s", runtime.GOOS)
	}
}

func macEntryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", "com.padkeys.daemon.plist"), nil
}

func linuxEntryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "autostart", "padkeys.desktop"), nil
}

func writeEntry(pathFn func() (string, error), tmplText string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("autostart: failed to get executable path: %w", err)
	}

	path, err := pathFn()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpl, err := template.New("entry").Parse(tmplText)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, struct{ ExecutablePath string }{execPath})
}
