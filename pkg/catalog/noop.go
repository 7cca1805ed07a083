package catalog

import "context"

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) RecordCreated(ctx context.Context, record *FileRecord) error {
	return nil
}

func (n *NoopEventSink) RecordDeleted(ctx context.Context, record *FileRecord) error {
	return nil
}

func (n *NoopEventSink) OrphanDetected(ctx context.Context, kind OrphanKind, name string) error {
	return nil
}
