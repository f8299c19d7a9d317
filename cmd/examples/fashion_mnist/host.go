package main

import (
	"log"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// logHost Prints CPU the run is executed on. Gorgonia's CPU engine vectorizes through gonum, so AVX support matters for speed
func logHost() {
	log.Printf("cpu=%q vendor=%s physical_cores=%d logical_cores=%d threads_per_core=%d gomaxprocs=%d",
		cpuid.CPU.BrandName,
		cpuid.CPU.VendorString,
		cpuid.CPU.PhysicalCores,
		cpuid.CPU.LogicalCores,
		cpuid.CPU.ThreadsPerCore,
		runtime.GOMAXPROCS(0),
	)
	log.Printf("avx2=%t avx512=%t fma3=%t",
		cpuid.CPU.Supports(cpuid.AVX2),
		cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
		cpuid.CPU.Supports(cpuid.FMA3),
	)
}
