package bind_group_provider

// BufferWrite describes a single queue write into the buffer stored at a binding of a
// BindGroupProvider, at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}
