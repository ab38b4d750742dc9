package testutil

// Minimal WebAssembly binary encoder used to build guest modules for
// integration tests. It only knows the handful of sections and opcodes the
// test guests need.

const (
	valI32 byte = 0x7f

	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionExport   byte = 7
	sectionCode     byte = 10

	kindFunc   byte = 0x00
	kindMemory byte = 0x02

	opLocalGet byte = 0x20
	opCall     byte = 0x10
	opEnd      byte = 0x0b
)

// GuestImport is a host function the guest imports and re-exports under
// the same name, forwarding every i32 parameter and the i32 result.
type GuestImport struct {
	Module string
	Name   string
	Params int
}

// GuestModule describes a test guest.
type GuestModule struct {
	Imports []GuestImport
	// MemoryPages is the initial memory size. Zero means no memory is
	// declared or exported.
	MemoryPages uint32
	// MemoryExport names the memory export. Empty means "memory".
	MemoryExport string
}

// LoggingImports are the two logging ABI calls under namespace.
func LoggingImports(namespace string) []GuestImport {
	return []GuestImport{
		{Module: namespace, Name: "endpoint_get", Params: 3},
		{Module: namespace, Name: "write", Params: 4},
	}
}

// LoggingGuest returns a guest with one page of exported memory that
// re-exports endpoint_get and write from the fastly_log namespace.
func LoggingGuest() []byte {
	return BuildGuest(GuestModule{Imports: LoggingImports("fastly_log"), MemoryPages: 1})
}

// LoggingGuestWithoutMemory is LoggingGuest minus the memory export.
func LoggingGuestWithoutMemory() []byte {
	return BuildGuest(GuestModule{Imports: LoggingImports("fastly_log")})
}

// LoggingGuestWithMemoryExport is LoggingGuest with its memory exported
// under name instead of "memory".
func LoggingGuestWithMemoryExport(name string) []byte {
	return BuildGuest(GuestModule{Imports: LoggingImports("fastly_log"), MemoryPages: 1, MemoryExport: name})
}

// BuildGuest encodes g as a WebAssembly binary.
func BuildGuest(g GuestModule) []byte {
	n := len(g.Imports)

	// One type per import; duplicates are legal and keep indexing trivial.
	types := make([][]byte, n)
	for i, imp := range g.Imports {
		params := make([]byte, imp.Params)
		for j := range params {
			params[j] = valI32
		}
		ft := []byte{0x60}
		ft = append(ft, vec(params)...)
		ft = append(ft, vec([]byte{valI32})...)
		types[i] = ft
	}

	imports := make([][]byte, n)
	for i, imp := range g.Imports {
		entry := append(wasmName(imp.Module), wasmName(imp.Name)...)
		entry = append(entry, kindFunc)
		entry = append(entry, uleb(uint32(i))...) //nolint:gosec // G115: small counts
		imports[i] = entry
	}

	// Defined function i forwards to imported function i and has index n+i.
	funcs := make([][]byte, n)
	for i := range g.Imports {
		funcs[i] = uleb(uint32(i)) //nolint:gosec // G115: small counts
	}

	var exports [][]byte
	if g.MemoryPages > 0 {
		memName := g.MemoryExport
		if memName == "" {
			memName = "memory"
		}
		exports = append(exports, append(append(wasmName(memName), kindMemory), uleb(0)...))
	}
	for i, imp := range g.Imports {
		e := append(wasmName(imp.Name), kindFunc)
		e = append(e, uleb(uint32(n+i))...) //nolint:gosec // G115: small counts
		exports = append(exports, e)
	}

	bodies := make([][]byte, n)
	for i, imp := range g.Imports {
		code := []byte{0x00} // no locals
		for p := 0; p < imp.Params; p++ {
			code = append(code, opLocalGet)
			code = append(code, uleb(uint32(p))...) //nolint:gosec // G115: small counts
		}
		code = append(code, opCall)
		code = append(code, uleb(uint32(i))...) //nolint:gosec // G115: small counts
		code = append(code, opEnd)
		bodies[i] = append(uleb(uint32(len(code))), code...) //nolint:gosec // G115: small counts
	}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(sectionType, vecOf(types))...)
	out = append(out, section(sectionImport, vecOf(imports))...)
	out = append(out, section(sectionFunction, vecOf(funcs))...)
	if g.MemoryPages > 0 {
		limits := append([]byte{0x00}, uleb(g.MemoryPages)...)
		out = append(out, section(sectionMemory, vecOf([][]byte{limits}))...)
	}
	out = append(out, section(sectionExport, vecOf(exports))...)
	out = append(out, section(sectionCode, vecOf(bodies))...)
	return out
}

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(body)))...) //nolint:gosec // G115: small sections
	return append(out, body...)
}

// vec encodes a vector of single-byte elements.
func vec(items []byte) []byte {
	return append(uleb(uint32(len(items))), items...) //nolint:gosec // G115: small counts
}

func vecOf(items [][]byte) []byte {
	out := uleb(uint32(len(items))) //nolint:gosec // G115: small counts
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmName(s string) []byte {
	return append(uleb(uint32(len(s))), s...) //nolint:gosec // G115: short names
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}
