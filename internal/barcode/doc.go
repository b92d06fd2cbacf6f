// Package barcode defines the symbology model and the library-backed
// decode engine.
//
// Decoding is always delegated: the Decoder wraps the gozxing port of the
// ZXing readers, and the zxing package wraps the upstream Java CLI for the
// cases the port cannot handle (MaxiCode in particular). Both engines
// produce the same Result shape so the pipeline can treat them uniformly.
package barcode
