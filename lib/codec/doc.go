// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration used for
// capture documents.
//
// Captures have two serializations. JSON is the external interface: an
// array of thread objects on standard output, the form other tools
// consume. CBOR is the archival form written to capture files: it
// carries the whole document, including the list of clients that could
// not be captured, and decodes without loss in the viewer.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2) so the
// same capture always produces identical bytes.
//
//	data, err := codec.Marshal(document)
//	err = codec.Unmarshal(data, &document)
//
// # Struct Tag Rules
//
// Types that appear in both serializations carry only `json` tags;
// fxamacker/cbor v2 reads `json` tags when `cbor` tags are absent. Use
// a `cbor` tag only on types that are never marshaled to JSON. Never
// put both tags on the same field.
package codec
