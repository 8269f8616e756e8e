package config

const (
	// TopicDocumentEmbed is the NSQ topic for chunk embedding tasks.
	TopicDocumentEmbed = "document.embed"

	// TopicDocumentDelete is the NSQ topic for document deletion events,
	// consumed by the vector cleanup subsystem.
	TopicDocumentDelete = "document.delete"
)
