// Package spng decodes PNG images without trusting them: every chunk is
// checked, dimensions and chunk sizes are bounded before anything is
// allocated, and image data is inflated one row at a time.
//
// Decode and DecodeBytes cover the common case. Decoder gives a two step
// read where the header can be inspected before committing to decode.
// Context exposes everything: chunk getters, CRC policy, limits and row by
// row decoding.
//
//	ctx := spng.NewContext(spng.DefaultOptions())
//	ctx.SetStream(f)
//	size, err := ctx.DecodedImageSize(spng.FormatRGBA8)
//	...
//	buf := make([]byte, size)
//	err = ctx.DecodeImage(buf, spng.FormatRGBA8, spng.DecodeTransparency)
//
// Errors can be classified with errors.Is against a Kind such as
// CorruptData, or a Code such as CodeChunkCRC.
package spng
