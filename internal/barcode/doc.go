// Package barcode wraps the single-shot barcode decoder used by the search
// pipeline.
//
// A Decoder makes exactly one attempt on the image it is given with the
// requested binarization strategy. It does not crop, enhance or retry; those
// concerns belong to the caller. The default implementation is backed by
// gozxing and is safe for concurrent use because readers are created per call.
package barcode
