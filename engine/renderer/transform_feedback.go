package renderer

import "cogentcore.org/core/base/ordmap"

// TransformFeedbackBuffers maps varying names to the buffers capturing them, in capture order.
type TransformFeedbackBuffers = ordmap.Map[string, Buffer]

// NewTransformFeedbackBuffers returns an empty ordered varying-to-buffer map.
func NewTransformFeedbackBuffers() *TransformFeedbackBuffers {
	return ordmap.New[string, Buffer]()
}

// Varyings returns the varying names of tf in capture order. A nil map has no varyings.
func Varyings(tf *TransformFeedbackBuffers) []string {
	if tf == nil {
		return nil
	}
	return tf.Keys()
}
