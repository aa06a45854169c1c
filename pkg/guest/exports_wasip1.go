//go:build wasip1

package guest

// The fixed utility exports every guest module exposes. Importing this package
// from a wasip1 build is enough to carry them; route exports are authored per
// module on top of Dispatch.

//go:wasmexport allocate
func allocate(size int32) uint32 {
	return Alloc(size)
}

//go:wasmexport release
func release(ptr uint32, size int32) {
	Free(ptr, size)
}

//go:wasmexport module_manifest
func moduleManifest() uint64 {
	return uint64(ManifestBuffer())
}
