// Package blobsource reads and writes the byte blobs the wirecall command
// sends as segments or produces as encoded tensors.
//
// A blob is named by a reference: "-" for stdio, "s3://bucket/key" for an
// S3 object (read with aws-sdk-go-v2), or a local file path.
package blobsource
