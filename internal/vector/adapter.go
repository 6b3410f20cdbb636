package vector

// MaxStorageArraySize is the store's indexable-array limit for scalar array
// fields. Longer embeddings are truncated before being stored as document
// data; the similarity vector is unaffected by this cap.
const MaxStorageArraySize = 1000

// StorageVector returns the first min(len(embedding), MaxStorageArraySize)
// elements of the embedding. Truncation only, never padded.
func StorageVector(embedding []float32) []float32 {
	if len(embedding) <= MaxStorageArraySize {
		return embedding
	}
	return embedding[:MaxStorageArraySize]
}

// SimilarityVector adjusts the embedding to exactly dim elements to match the
// collection's declared index dimension: truncated when longer, right-padded
// with zeros when shorter.
func SimilarityVector(embedding []float32, dim int) []float32 {
	if len(embedding) >= dim {
		return embedding[:dim]
	}
	out := make([]float32, dim)
	copy(out, embedding)
	return out
}
