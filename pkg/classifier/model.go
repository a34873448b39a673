package classifier

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/pilotdev/pilotd/pkg/statedir"
)

// chatTemplate is the embedded ChatML-style prompt template for CRUD
// classification, written to the sealed temp bundle on load (spec.md
// §4.2: "Chat template is embedded in the binary").
//
//go:embed chat_template.json
var chatTemplate []byte

// ModelConfig describes the on-disk model artifact and how to invoke it.
type ModelConfig struct {
	// Name identifies the model file under statedir's models/ directory
	// (without the .gguf extension) and the download URL's basename.
	Name string
	// DownloadURL is fetched on first use if the model file is absent.
	DownloadURL string
	// ExpectedSize, if non-zero, is checked after download (spec.md §4.2
	// "verified (size, optional hash)").
	ExpectedSize int64
	// ExpectedSHA256, if non-empty, is checked after download.
	ExpectedSHA256 string
	// InferenceCmd is the local binary invoked to run the model, e.g. a
	// llama-cli-shaped command. The model path and prompt are appended as
	// arguments. Empty means no local inference binary is configured —
	// callers should use RubricEngine instead.
	InferenceCmd string
	// MemoryPressureThresholdPercent triggers Unload when system memory
	// used crosses this percentage (spec.md §4.2: "unloaded on memory
	// pressure").
	MemoryPressureThresholdPercent float64
}

// ModelEngine lazily downloads, caches, and loads a quantized on-disk
// model, shelling out to a configured local inference command per
// classify call. The first call after daemon start pays the load cost;
// the model may be unloaded under memory pressure and reloaded on the
// next call.
type ModelEngine struct {
	cfg    ModelConfig
	dir    *statedir.Dir
	bundle *statedir.TempBundle

	mu     sync.Mutex
	loaded bool
}

// NewModelEngine returns an engine bound to dir's models/ subdirectory.
func NewModelEngine(cfg ModelConfig, dir *statedir.Dir) *ModelEngine {
	return &ModelEngine{cfg: cfg, dir: dir, bundle: statedir.NewTempBundle()}
}

// ensureLoaded downloads the model file if absent, verifies it, and writes
// the chat template to the temp bundle. Safe to call repeatedly; the
// expensive path only runs once until Unload is called.
func (e *ModelEngine) ensureLoaded(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}

	path := e.dir.ModelFile(e.cfg.Name)
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("stat model file: %w", err)
		}
		if err := e.download(ctx, path); err != nil {
			return fmt.Errorf("download model: %w", err)
		}
	}

	if err := os.WriteFile(e.bundle.ChatTemplatePath(), chatTemplate, 0o600); err != nil {
		return fmt.Errorf("write chat template: %w", err)
	}

	e.loaded = true
	slog.Info("classifier model loaded", "model", e.cfg.Name, "path", path)
	return nil
}

func (e *ModelEngine) download(ctx context.Context, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.DownloadURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	tmp := destPath + ".download"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	written, err := io.Copy(f, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if e.cfg.ExpectedSize != 0 && written != e.cfg.ExpectedSize {
		os.Remove(tmp)
		return fmt.Errorf("downloaded size %d does not match expected %d", written, e.cfg.ExpectedSize)
	}
	return os.Rename(tmp, destPath)
}

// Unload drops the in-memory "loaded" flag, forcing the next Complete call
// to re-run ensureLoaded. Intended to be invoked by a memory-pressure
// monitor (see MaybeUnloadOnPressure).
func (e *ModelEngine) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	slog.Info("classifier model unloaded", "model", e.cfg.Name)
}

// MaybeUnloadOnPressure unloads the model if system memory usage exceeds
// the configured threshold. Safe to call periodically from a background
// ticker.
func (e *ModelEngine) MaybeUnloadOnPressure(ctx context.Context) {
	if e.cfg.MemoryPressureThresholdPercent <= 0 {
		return
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil || len(procs) == 0 {
		return
	}
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return
	}
	percent, err := self.MemoryPercentWithContext(ctx)
	if err != nil {
		return
	}
	if float64(percent) >= e.cfg.MemoryPressureThresholdPercent {
		e.Unload()
	}
}

// Complete implements Engine by shelling out to cfg.InferenceCmd with the
// model path and the rubric-wrapped prompt, deterministic sampling
// (temperature fixed low, max tokens ≤10 per spec.md §4.2).
func (e *ModelEngine) Complete(ctx context.Context, command string) (string, float64, error) {
	if e.cfg.InferenceCmd == "" {
		return "", 0, fmt.Errorf("no inference command configured")
	}
	if err := e.ensureLoaded(ctx); err != nil {
		return "", 0, err
	}

	prompt := fmt.Sprintf("Classify this shell command as READ, CREATE, UPDATE, or DELETE: %s", command)
	modelPath := e.dir.ModelFile(e.cfg.Name)

	fields := strings.Fields(e.cfg.InferenceCmd)
	if len(fields) == 0 {
		return "", 0, fmt.Errorf("empty inference command")
	}
	args := append(fields[1:],
		"--model", modelPath,
		"--temp", "0.0",
		"--n-predict", "10",
		"--prompt", prompt,
	)
	cmd := exec.CommandContext(ctx, fields[0], args...)
	out, err := cmd.Output()
	if err != nil {
		return "", 0, fmt.Errorf("run inference command: %w", err)
	}
	return string(out), 0, nil
}
