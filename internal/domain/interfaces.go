package domain

import (
	"context"
	"image"
)

// ImageEncoder turns an ordered list of image files into a single PDF written
// to job.OutputPath. Input order is page order.
type ImageEncoder interface {
	Encode(ctx context.Context, job *ConversionJob) error
}

// PageVisitor receives decoded pages in document order. page is 1-indexed;
// total is the document's page count when known, otherwise 0.
type PageVisitor func(page, total int, img image.Image) error

// PageDecoder renders every page of job.Inputs[0] and hands each one to visit.
type PageDecoder interface {
	Decode(ctx context.Context, job *ConversionJob, visit PageVisitor) error
}
