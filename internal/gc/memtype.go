package gc

// MemoryType tags an allocation for per-type accounting (spec §4.7).
type MemoryType int

const (
	MemString MemoryType = iota
	MemMaterObject
	MemMaterArray
	MemFunction
	MemClosure
	MemUpValue
	numMemoryTypes
)

var memTypeNames = [...]string{
	MemString:      "String",
	MemMaterObject: "MaterObject",
	MemMaterArray:  "MaterArray",
	MemFunction:    "Function",
	MemClosure:     "Closure",
	MemUpValue:     "UpValue",
}

func (m MemoryType) String() string {
	if int(m) < len(memTypeNames) {
		return memTypeNames[m]
	}
	return "Unknown"
}
