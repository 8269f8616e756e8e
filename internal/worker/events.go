package worker

// ChunkEmbedPayload is one chunk of an ingested document awaiting
// embedding. TotalChunks lets the consumer refresh the document centroid
// after the final chunk lands.
type ChunkEmbedPayload struct {
	DocumentID  string `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Content     string `json:"content"`

	CorrelationID string `json:"correlation_id"`
}

// DocumentDeletePayload announces a deleted document whose vectors must be
// removed from the index. VectorIDs is an optional pre-fetched hint.
type DocumentDeletePayload struct {
	DocumentID string   `json:"document_id"`
	VectorIDs  []string `json:"vector_ids,omitempty"`

	CorrelationID string `json:"correlation_id"`
}
