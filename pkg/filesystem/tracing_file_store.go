package filesystem

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracingFileStore struct {
	base   FileStore
	tracer trace.Tracer
}

// NewTracingFileStore is a decorator for FileStore that creates an
// OpenTelemetry trace span for every operation.
func NewTracingFileStore(base FileStore, tracerProvider trace.TracerProvider) FileStore {
	return &tracingFileStore{
		base:   base,
		tracer: tracerProvider.Tracer("github.com/buildbarn/bb-indexfs/pkg/filesystem"),
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (fs *tracingFileStore) Create(ctx context.Context, fileSizeBytes int64) (uint32, error) {
	ctxWithTracing, span := fs.tracer.Start(ctx, "FileStore.Create", trace.WithAttributes(
		attribute.Int64("file_size_bytes", fileSizeBytes),
	))
	headerSector, err := fs.base.Create(ctxWithTracing, fileSizeBytes)
	if err == nil {
		span.SetAttributes(attribute.Int64("header_sector", int64(headerSector)))
	}
	endSpan(span, err)
	return headerSector, err
}

func (fs *tracingFileStore) Open(ctx context.Context, headerSector uint32) (*OpenFile, error) {
	ctxWithTracing, span := fs.tracer.Start(ctx, "FileStore.Open", trace.WithAttributes(
		attribute.Int64("header_sector", int64(headerSector)),
	))
	f, err := fs.base.Open(ctxWithTracing, headerSector)
	if err == nil {
		span.SetAttributes(attribute.Int64("file_size_bytes", f.Length()))
	}
	endSpan(span, err)
	return f, err
}

func (fs *tracingFileStore) Remove(ctx context.Context, headerSector uint32) error {
	ctxWithTracing, span := fs.tracer.Start(ctx, "FileStore.Remove", trace.WithAttributes(
		attribute.Int64("header_sector", int64(headerSector)),
	))
	err := fs.base.Remove(ctxWithTracing, headerSector)
	endSpan(span, err)
	return err
}
