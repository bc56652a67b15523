// Package jpt implements the JPT image container: a JPEG payload carrying the colour
// channels and a PNG payload carrying the alpha mask, bundled behind a small fixed header.
//
// The container codec (Merge, Split, Encode, Decode) treats both payloads as opaque bytes.
// Prepare and the registered "jpt" image format cover the transcoding side: building the
// two payloads from an arbitrary image and composing them back into an image.NRGBA.
package jpt
