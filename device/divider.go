package device

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/notargets/gocca"
)

const floorDivideSource = `
@kernel void floorDivide(const double eps,
                         const double *weight,
                         double *data) {
  for (int b = 0; b < NELEM; b += BLOCK; @outer) {
    for (int i = b; i < b + BLOCK; ++i; @inner) {
      if (i < NELEM) {
        const double w = weight[i] > eps ? weight[i] : eps;
        for (int k = 0; k < STRIDE; ++k) {
          data[i*STRIDE + k] /= w;
        }
      }
    }
  }
}
`

const blockSize = 64

type kernelKey struct {
	n, stride int
}

// Divider divides flattened field data by a floored weight on an OCCA
// device. Kernels are specialised on element count and stride and cached.
type Divider struct {
	device  *gocca.OCCADevice
	mu      sync.Mutex
	kernels map[kernelKey]*gocca.OCCAKernel
}

func NewDivider(device *gocca.OCCADevice) *Divider {
	return &Divider{
		device:  device,
		kernels: make(map[kernelKey]*gocca.OCCAKernel),
	}
}

func (d *Divider) Mode() string { return d.device.Mode() }

func (d *Divider) kernel(n, stride int) (*gocca.OCCAKernel, error) {
	key := kernelKey{n, stride}
	if k, ok := d.kernels[key]; ok {
		return k, nil
	}
	source := fmt.Sprintf("#define NELEM %d\n#define STRIDE %d\n#define BLOCK %d\n%s",
		n, stride, blockSize, floorDivideSource)

	var (
		k   *gocca.OCCAKernel
		err error
	)
	if d.device.Mode() == "OpenMP" {
		// OpenMP builds do not get -O3 by default
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		k, err = d.device.BuildKernelFromString(source, "floorDivide", props)
	} else {
		k, err = d.device.BuildKernelFromString(source, "floorDivide", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel floorDivide: %w", err)
	}
	d.kernels[key] = k
	return k, nil
}

// FloorDivide divides each group of stride values in data by the matching
// weight element raised to at least eps. It returns the number of weight
// elements that were raised.
func (d *Divider) FloorDivide(data []float64, stride int, weight []float64, eps float64) (int, error) {
	if stride < 1 {
		return 0, fmt.Errorf("stride must be positive, got %d", stride)
	}
	if len(data) != len(weight)*stride {
		return 0, fmt.Errorf("data length %d does not match %d weights of stride %d",
			len(data), len(weight), stride)
	}
	if len(weight) == 0 {
		return 0, nil
	}
	floored := 0
	for _, w := range weight {
		if w < eps {
			floored++
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	k, err := d.kernel(len(weight), stride)
	if err != nil {
		return 0, err
	}
	wBytes := int64(len(weight) * 8)
	dBytes := int64(len(data) * 8)
	wMem := d.device.Malloc(wBytes, unsafe.Pointer(&weight[0]), nil)
	defer wMem.Free()
	dMem := d.device.Malloc(dBytes, unsafe.Pointer(&data[0]), nil)
	defer dMem.Free()

	if err := k.RunWithArgs(eps, wMem, dMem); err != nil {
		return 0, fmt.Errorf("failed to run kernel floorDivide: %w", err)
	}
	d.device.Finish()
	dMem.CopyTo(unsafe.Pointer(&data[0]), dBytes)
	return floored, nil
}

// Free releases the cached kernels. The device is owned by the caller.
func (d *Divider) Free() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, k := range d.kernels {
		k.Free()
		delete(d.kernels, key)
	}
}
