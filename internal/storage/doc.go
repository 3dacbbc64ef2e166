// Package storage persists document bundles on the filesystem.
//
// A bundle is one directory under the storage root, named by the document's
// UUID, holding named fragment files (the uploaded document, derived text,
// derived thumbnail, a processing log) plus a JSON manifest. Creation is
// atomic: fragments and manifest are staged in a hidden temp directory and
// renamed into place, so a concurrent reader never observes a partial bundle.
// Manifest saves are likewise atomic and carry a revision counter for
// optimistic conflict detection between concurrent in-process writers.
package storage
