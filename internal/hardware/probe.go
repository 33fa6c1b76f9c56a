// Package hardware reports a point-in-time snapshot of the host and derives
// deployment resource recommendations from it.
package hardware

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/prometheus/procfs"
)

// Accelerator names a detected compute accelerator.
type Accelerator string

// Known accelerators, in detection priority order after AcceleratorNone.
const (
	AcceleratorNone     Accelerator = "none"
	AcceleratorCUDA     Accelerator = "cuda"
	AcceleratorROCm     Accelerator = "rocm"
	AcceleratorOpenVINO Accelerator = "openvino"
	AcceleratorDRI      Accelerator = "dri"
)

const (
	probeCommandTimeout = 5 * time.Second
	kilobytesPerMB      = 1024
	unknownArchitecture = "unknown"
	openVINODir         = "/opt/intel/openvino"
	openVINOEnv         = "INTEL_OPENVINO_DIR"
	driRenderGlob       = "/dev/dri/renderD*"
)

var errMeminfoIncomplete = errors.New("meminfo has no MemTotal")

// Snapshot is the detected state of the host.
type Snapshot struct {
	Architecture     string      `json:"architecture"`
	RAMMB            int         `json:"ram_mb"`
	AvailableRAMMB   int         `json:"available_ram_mb"`
	CPUCores         int         `json:"cpu_cores"`
	CPUPhysicalCores int         `json:"cpu_physical_cores,omitempty"`
	CPUModel         string      `json:"cpu_model,omitempty"`
	Accelerator      Accelerator `json:"accelerator"`
}

// MemInfo is total and available memory in kilobytes.
type MemInfo struct {
	TotalKB     uint64
	AvailableKB uint64
}

// Sources are the OS-level primitives the probe reads. Every field must be set;
// DefaultSources returns the real implementations.
type Sources struct {
	Meminfo    func() (MemInfo, error)
	RunCommand func(ctx context.Context, name string) error
	PathExists func(path string) bool
	Glob       func(pattern string) ([]string, error)
	Getenv     func(key string) string
	NumCPU     func() int
	CPUModel   func() (brand string, physicalCores int)
	GOARCH     string
}

// DefaultSources reads /proc through procfs, CPU identity through cpuid, and
// runs vendor tools to detect accelerators.
func DefaultSources() Sources {
	return Sources{
		Meminfo:    readMeminfo,
		RunCommand: runQuiet,
		PathExists: func(path string) bool {
			_, err := os.Stat(path)

			return err == nil
		},
		Glob:   filepath.Glob,
		Getenv: os.Getenv,
		NumCPU: runtime.NumCPU,
		CPUModel: func() (string, int) {
			return cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores
		},
		GOARCH: runtime.GOARCH,
	}
}

// Probe detects host hardware. The first Detect result is memoized for the
// lifetime of the Probe.
type Probe struct {
	sources  Sources
	once     sync.Once
	snapshot Snapshot
}

// NewProbe creates a Probe over the given sources.
func NewProbe(sources Sources) *Probe {
	return &Probe{sources: sources}
}

// Detect returns the hardware snapshot. It never fails: every sub-probe
// degrades to a safe default.
func (p *Probe) Detect() Snapshot {
	p.once.Do(func() {
		p.snapshot = p.detect()
	})

	return p.snapshot
}

func (p *Probe) detect() Snapshot {
	total, available := p.detectRAM()
	brand, physical := p.sources.CPUModel()

	return Snapshot{
		Architecture:     machineName(p.sources.GOARCH),
		RAMMB:            total,
		AvailableRAMMB:   available,
		CPUCores:         p.detectCPUCores(),
		CPUPhysicalCores: physical,
		CPUModel:         brand,
		Accelerator:      p.detectAccelerator(),
	}
}

func (p *Probe) detectRAM() (int, int) {
	info, err := p.sources.Meminfo()
	if err != nil {
		return 0, 0
	}

	return int(info.TotalKB / kilobytesPerMB), int(info.AvailableKB / kilobytesPerMB)
}

func (p *Probe) detectCPUCores() int {
	cores := p.sources.NumCPU()
	if cores < 1 {
		return 1
	}

	return cores
}

func (p *Probe) detectAccelerator() Accelerator {
	ctx, cancel := context.WithTimeout(context.Background(), probeCommandTimeout)
	defer cancel()

	if p.sources.RunCommand(ctx, "nvidia-smi") == nil {
		return AcceleratorCUDA
	}

	if p.sources.RunCommand(ctx, "rocm-smi") == nil {
		return AcceleratorROCm
	}

	if p.sources.PathExists(openVINODir) || p.sources.Getenv(openVINOEnv) != "" {
		return AcceleratorOpenVINO
	}

	nodes, err := p.sources.Glob(driRenderGlob)
	if err == nil && len(nodes) > 0 {
		return AcceleratorDRI
	}

	return AcceleratorNone
}

// machineName reports the architecture the way uname -m does.
func machineName(goarch string) string {
	switch goarch {
	case "":
		return unknownArchitecture
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "arm":
		return "armv7l"
	case "386":
		return "i686"
	default:
		return goarch
	}
}

func readMeminfo() (MemInfo, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return MemInfo{}, err
	}

	meminfo, err := fs.Meminfo()
	if err != nil {
		return MemInfo{}, err
	}

	if meminfo.MemTotal == nil {
		return MemInfo{}, errMeminfoIncomplete
	}

	info := MemInfo{TotalKB: *meminfo.MemTotal}
	if meminfo.MemAvailable != nil {
		info.AvailableKB = *meminfo.MemAvailable
	}

	return info, nil
}

func runQuiet(ctx context.Context, name string) error {
	// #nosec G204 -- name is one of a fixed set of vendor tools
	return exec.CommandContext(ctx, name).Run()
}
