package runtime

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	goruntime "runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"vibe/internal/config"
	"vibe/internal/fsutil"
)

const (
	requirementsFile = "requirements.txt"
	venvDir          = ".venv"
)

var pythonVersionRE = regexp.MustCompile(`Python (\d+)\.(\d+)(?:\.(\d+))?`)

// Interpreter is a python executable found on PATH.
type Interpreter struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

type Python struct {
	candidates   []string
	minVersion   string
	requirements []string
	goos         string
	exec         execFunc
	lookPath     lookPathFunc
	logger       *zap.Logger
}

func NewPython(cfg config.RuntimeConfig, logger *zap.Logger) *Python {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Python{
		candidates:   cfg.Python,
		minVersion:   cfg.PythonMinVersion,
		requirements: cfg.Requirements,
		goos:         goruntime.GOOS,
		exec:         defaultExec,
		lookPath:     exec.LookPath,
		logger:       logger,
	}
}

// Check finds the first candidate interpreter that meets the minimum
// version. The error wraps ErrEnvironment.
func (p *Python) Check(ctx context.Context) (Interpreter, error) {
	var tried []string
	for _, name := range p.candidates {
		path, err := p.lookPath(name)
		if err != nil {
			tried = append(tried, name+": not found")
			continue
		}
		out, err := p.exec(ctx, "", path, "--version")
		if err != nil {
			tried = append(tried, name+": "+err.Error())
			continue
		}
		version, ok := parsePythonVersion(string(out))
		if !ok {
			tried = append(tried, fmt.Sprintf("%s: unrecognised version output %q", name, strings.TrimSpace(string(out))))
			continue
		}
		if floor := canonical(p.minVersion); floor != "" && semver.Compare(version, floor) < 0 {
			tried = append(tried, fmt.Sprintf("%s: %s is older than %s", name, strings.TrimPrefix(version, "v"), p.minVersion))
			continue
		}
		p.logger.Debug("python found", zap.String("path", path), zap.String("version", version))
		return Interpreter{Path: path, Version: strings.TrimPrefix(version, "v")}, nil
	}
	return Interpreter{}, fmt.Errorf("RUNTIME_PYTHON: python %s+ is required (%s): %w",
		p.minVersion, strings.Join(tried, "; "), ErrEnvironment)
}

// Ensure prepares rootDir for python tools: requirements.txt is created or
// extended, .venv is created when absent and the requirements installed.
func (p *Python) Ensure(ctx context.Context, rootDir string, interp Interpreter) error {
	reqPath := filepath.Join(rootDir, requirementsFile)
	if err := p.writeRequirements(reqPath); err != nil {
		return err
	}
	venv := filepath.Join(rootDir, venvDir)
	if !fsutil.IsDir(venv) {
		if _, err := p.exec(ctx, rootDir, interp.Path, "-m", "venv", venv); err != nil {
			return fmt.Errorf("RUNTIME_VENV: %w", err)
		}
	}
	if _, err := p.exec(ctx, rootDir, pipPath(venv, p.goos), "install", "-r", reqPath); err != nil {
		return fmt.Errorf("RUNTIME_PIP: %w", err)
	}
	return nil
}

// ActivationHint is the shell command that activates the workspace venv.
func (p *Python) ActivationHint() string {
	if p.goos == "windows" {
		return `.\.venv\Scripts\Activate.ps1`
	}
	return "source .venv/bin/activate"
}

func (p *Python) writeRequirements(path string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("RUNTIME_REQUIREMENTS: %w", err)
	}
	have := requirementNames(existing)
	var missing []string
	for _, req := range p.requirements {
		if _, ok := have[requirementName(req)]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		buf.WriteByte('\n')
	}
	if len(existing) == 0 {
		buf.WriteString("# vibe tool dependencies\n")
	}
	for _, req := range missing {
		buf.WriteString(req)
		buf.WriteByte('\n')
	}
	if err := fsutil.AtomicWrite(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("RUNTIME_REQUIREMENTS: %w", err)
	}
	return nil
}

func requirementNames(data []byte) map[string]struct{} {
	names := map[string]struct{}{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		names[requirementName(line)] = struct{}{}
	}
	return names
}

// requirementName is the lowercased distribution name of a requirement line.
func requirementName(req string) string {
	req = strings.TrimSpace(req)
	if i := strings.IndexAny(req, "<>=!~[; @"); i >= 0 {
		req = req[:i]
	}
	return strings.ToLower(strings.ReplaceAll(req, "_", "-"))
}

func pipPath(venv, goos string) string {
	if goos == "windows" {
		return filepath.Join(venv, "Scripts", "pip.exe")
	}
	return filepath.Join(venv, "bin", "pip")
}

func parsePythonVersion(out string) (string, bool) {
	m := pythonVersionRE.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	v := "v" + m[1] + "." + m[2] + "." + patch
	return v, semver.IsValid(v)
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
