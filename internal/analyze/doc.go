// Package analyze performs offline analysis of boot images: parsing the
// Android boot header, locating and decoding SLA certificates, and
// extracting the kernel and ramdisk to disk.
//
// Everything here is fixed-offset byte extraction over a file already in
// hand: no device contact, and no cryptographic verification of the
// certificates it finds.
package analyze
