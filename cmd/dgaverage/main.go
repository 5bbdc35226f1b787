// dgaverage averages a field sampled on a tetrahedral mesh into cell and
// point values and gradients and writes the four derived fields.
//
// Usage:
//
//	# Average a Gaussian pulse on the configured mesh
//	dgaverage run --config average.yaml
//
//	# Override the averaging method and output format
//	dgaverage run --method dual --format zstd
//
//	# Check a configuration and mesh without averaging
//	dgaverage validate --config average.yaml
package main

func main() {
	Execute()
}
