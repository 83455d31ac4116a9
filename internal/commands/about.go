package commands

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
)

// AppName is shown in the about output and the UI title
const AppName = "VoiceNotes"

// About describes the running binary
type About struct {
	Name      string
	Version   string
	Build     string
	GoVersion string
	Platform  string
}

// ReadAbout collects build details. version is set by the linker; the
// build falls back to "unknown" when no VCS revision was recorded.
func ReadAbout(version string) About {
	a := About{
		Name:      AppName,
		Version:   version,
		Build:     "unknown",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if a.Version == "" {
		a.Version = "dev"
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return a
	}
	if a.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		a.Version = info.Main.Version
	}
	var modified bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			a.Build = s.Value
			if len(a.Build) > 12 {
				a.Build = a.Build[:12]
			}
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if modified && a.Build != "unknown" {
		a.Build += "-dirty"
	}
	return a
}

// AboutCommand prints version information
type AboutCommand struct {
	version string
	out     io.Writer
}

// NewAboutCommand creates a new about command
func NewAboutCommand(version string) *AboutCommand {
	return &AboutCommand{version: version, out: os.Stdout}
}

// Execute prints the about block
func (c *AboutCommand) Execute() error {
	a := ReadAbout(c.version)
	fmt.Fprintf(c.out, "%s %s\n", a.Name, a.Version)
	fmt.Fprintf(c.out, "Build:    %s\n", a.Build)
	fmt.Fprintf(c.out, "Go:       %s\n", a.GoVersion)
	fmt.Fprintf(c.out, "Platform: %s\n", a.Platform)
	return nil
}
