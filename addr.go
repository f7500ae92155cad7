package peview

// Rva is an offset from the image's base once it is mapped, independent of
// where the image actually gets loaded. Zero is reserved to mean absent.
type Rva uint32

// Va is the absolute address at which a byte would reside once the image is
// mapped at its preferred base. Zero is reserved to mean absent.
type Va uint64

// FileOffset is a byte position within the on-disk representation of the
// image.
type FileOffset uint32

// Ptr is a typed virtual address. The type parameter records what the
// address points at; dereferencing goes through the Deref family.
type Ptr[T any] Va

// Va returns the untyped virtual address.
func (p Ptr[T]) Va() Va { return Va(p) }
