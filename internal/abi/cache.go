package abi

// Cache deduplicates descriptors by structural identity. Every lowering
// context owns one; arranging consults it before handing a descriptor out,
// so structurally identical signatures share a single FuncInfo.
type Cache struct {
	buckets map[uint64][]*FuncInfo
}

// NewCache constructs an empty signature cache.
func NewCache() *Cache {
	return &Cache{buckets: make(map[uint64][]*FuncInfo, 64)}
}

// Intern returns the canonical descriptor structurally equal to info,
// registering info itself when none exists yet.
func (c *Cache) Intern(info *FuncInfo) *FuncInfo {
	key := fingerprint(info)
	for _, have := range c.buckets[key] {
		if have.equal(info) {
			return have
		}
	}
	c.buckets[key] = append(c.buckets[key], info)
	return info
}

// Len reports how many distinct signatures the cache holds.
func (c *Cache) Len() int {
	n := 0
	for _, bucket := range c.buckets {
		n += len(bucket)
	}
	return n
}

func fingerprint(fi *FuncInfo) uint64 {
	const (
		fnvOffset64 = 1469598103934665603
		fnvPrime64  = 1099511628211
	)

	hash := uint64(fnvOffset64)
	mix := func(x uint64) {
		hash ^= x
		hash *= fnvPrime64
	}
	mixBool := func(b bool) {
		if b {
			mix(1)
		} else {
			mix(0)
		}
	}

	mix(uint64(fi.CC))
	mix(uint64(fi.DeclCC))
	mixBool(fi.InstanceMethod)
	mixBool(fi.ChainCall)
	mixBool(fi.NoReturn)
	mixBool(fi.ReturnsRetained)
	mixBool(fi.NoCallerSavedRegs)
	mixBool(fi.NoCfCheck)
	mixBool(fi.HasRegParm)
	mix(uint64(fi.RegParm))
	mix(uint64(fi.Required.state))
	mix(uint64(fi.Ret))
	mix(uint64(fi.IndirectRecord))
	mix(uint64(fi.IndirectAlign))
	mix(uint64(len(fi.Args)))
	for _, arg := range fi.Args {
		mix(uint64(arg))
	}
	mix(uint64(len(fi.ExtParams)))
	for _, ext := range fi.ExtParams {
		mixBool(ext.HasPassObjectSize)
		mixBool(ext.NoEscape)
	}
	return hash
}
