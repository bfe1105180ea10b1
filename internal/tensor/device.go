package tensor

import (
	"sync"

	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/internal/backend"
	"github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/internal/backend/simulated"
	"github.com/born-ml/tensorcore/internal/backend/webgpu"
	"github.com/born-ml/tensorcore/internal/envconfig"
)

// Device identifies where a tensor's storage lives.
type Device = backend.Device

// CPU is the host device.
var CPU = backend.Host

// AcceleratorDevice returns the accelerator with the given ordinal.
func AcceleratorDevice(index int) Device {
	return Device{Type: backend.Accelerator, Index: index}
}

var acceleratorOnce sync.Once

// initAccelerator registers the accelerator runtime chosen by
// TENSORCORE_ACCELERATOR the first time an accelerator is requested,
// unless one was registered explicitly.
func initAccelerator() {
	acceleratorOnce.Do(func() {
		if backend.Registered(backend.Accelerator) {
			return
		}
		switch mode := envconfig.Accelerator(); mode {
		case "off":
			klog.V(2).Info("tensor: accelerator disabled")
		case "simulated":
			backend.Register(simulated.New(1))
		default:
			rt, err := webgpu.New()
			if err != nil {
				if mode == "webgpu" {
					klog.Warningf("tensor: %v", err)
				} else {
					klog.V(1).Infof("tensor: no accelerator: %v", err)
				}
				return
			}
			backend.Register(rt)
		}
	})
}

func runtimeFor(dev Device) (backend.Runtime, error) {
	if dev.Type == backend.Accelerator {
		initAccelerator()
	}
	return backend.Lookup(dev)
}

// AcceleratorAvailable reports whether accelerator 0 can be used.
func AcceleratorAvailable() bool {
	_, err := runtimeFor(AcceleratorDevice(0))
	return err == nil
}

// Devices lists every usable device, host first.
func Devices() []Device {
	initAccelerator()
	var out []Device
	for _, rt := range backend.Runtimes() {
		for i := 0; i < rt.NumDevices(); i++ {
			out = append(out, Device{Type: rt.DeviceType(), Index: i})
		}
	}
	return out
}

// HostRuntime returns the host memory runtime, for memory accounting.
func HostRuntime() *cpu.Runtime {
	return cpu.Default
}
