// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package instance

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// JavaLocator maps a Java version to an installed executable.
type JavaLocator interface {
	Locate(version string) (path string, ok bool)
}

// Resolver turns an instance record into the command that launches it.
// It only reads the filesystem.
type Resolver struct {
	fs       afero.Fs
	platform string
	java     JavaLocator
}

// NewResolver creates a resolver. platform is a GOOS value; java may be nil,
// in which case the bare "java" command is used.
func NewResolver(fs afero.Fs, platform string, java JavaLocator) *Resolver {
	return &Resolver{fs: fs, platform: platform, java: java}
}

func (r *Resolver) windows() bool {
	return r.platform == "windows"
}

// scriptNames returns the launch scripts checked for a Java server, in
// priority order.
func (r *Resolver) scriptNames() []string {
	if r.windows() {
		return []string{"start.bat", "run.bat", "start.cmd", "run.cmd"}
	}
	return []string{"start.sh", "run.sh"}
}

func (r *Resolver) bedrockName() string {
	if r.windows() {
		return "bedrock_server.exe"
	}
	return "bedrock_server"
}

// Resolve returns the start command for rec.
func (r *Resolver) Resolve(rec Record) (string, error) {
	switch rec.Type {
	case TypeGeneric, "":
		if strings.TrimSpace(rec.StartCommand) == "" {
			return "", newError(KindValidation, "resolve", rec.ID, "start command is required for generic instances")
		}
		return rec.StartCommand, nil
	case TypeMinecraftJava:
		return r.resolveJava(rec)
	case TypeMinecraftBedrock:
		return r.resolveBedrock(rec)
	default:
		return "", newError(KindValidation, "resolve", rec.ID, "unknown instance type %q", rec.Type)
	}
}

func (r *Resolver) resolveJava(rec Record) (string, error) {
	dir := rec.WorkingDirectory

	for _, name := range r.scriptNames() {
		if r.isFile(filepath.Join(dir, name)) {
			if r.windows() {
				return name, nil
			}
			return "./" + name, nil
		}
	}

	jars, err := r.listJars(dir)
	if err != nil {
		return "", wrapError(KindValidation, "resolve", rec.ID, err, "cannot read working directory %s", dir)
	}
	if len(jars) == 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "no launch script or server jar found in %s\n", dir)
		b.WriteString("add one of these launch scripts:\n")
		for _, name := range r.scriptNames() {
			fmt.Fprintf(&b, "  %s\n", name)
		}
		b.WriteString("or place a server .jar file in the directory (a jar whose name contains \"server\" is preferred)")
		return "", newError(KindValidation, "resolve", rec.ID, "%s", b.String())
	}

	jar := pickJar(jars)
	return r.javaCommand(rec.JavaVersion, jar), nil
}

// pickJar prefers the first jar whose name mentions "server".
func pickJar(jars []string) string {
	if len(jars) == 1 {
		return jars[0]
	}
	for _, j := range jars {
		if strings.Contains(strings.ToLower(j), "server") {
			return j
		}
	}
	return jars[0]
}

func (r *Resolver) javaCommand(version, jar string) string {
	javaPath := "java"
	if version != "" && r.java != nil {
		if p, ok := r.java.Locate(version); ok && p != "" {
			javaPath = p
		}
	}

	abs := r.isAbs(javaPath)
	quoted := strings.ContainsAny(javaPath, " \t") || (r.windows() && abs)
	if quoted {
		javaPath = `"` + javaPath + `"`
	}
	if strings.ContainsAny(jar, " \t") {
		jar = `"` + jar + `"`
	}

	cmd := fmt.Sprintf("%s -jar %s nogui", javaPath, jar)
	if r.windows() && quoted && abs {
		// PowerShell needs the call operator to run a quoted path.
		cmd = "& " + cmd
	}
	return cmd
}

func (r *Resolver) resolveBedrock(rec Record) (string, error) {
	name := r.bedrockName()
	if !r.isFile(filepath.Join(rec.WorkingDirectory, name)) {
		return "", newError(KindValidation, "resolve", rec.ID,
			"%s not found in %s\nthe Bedrock server executable must be placed directly in the working directory:\n  %s",
			name, rec.WorkingDirectory, name)
	}
	if r.windows() {
		return name, nil
	}
	return "./" + name, nil
}

func (r *Resolver) listJars(dir string) ([]string, error) {
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return nil, err
	}
	var jars []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".jar") {
			jars = append(jars, e.Name())
		}
	}
	return jars, nil
}

func (r *Resolver) isFile(p string) bool {
	info, err := r.fs.Stat(p)
	return err == nil && !info.IsDir()
}

func (r *Resolver) isAbs(p string) bool {
	if r.windows() {
		if strings.HasPrefix(p, `\\`) {
			return true
		}
		return len(p) >= 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/')
	}
	return path.IsAbs(p)
}

// dirExists reports whether dir exists and is a directory.
func dirExists(fs afero.Fs, dir string) (bool, error) {
	info, err := fs.Stat(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// scriptPath returns the path of the script a "./name ..." command runs,
// or "" if cmd does not start with a relative script.
func scriptPath(dir, cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "./") {
		return ""
	}
	return filepath.Join(dir, strings.TrimPrefix(fields[0], "./"))
}
